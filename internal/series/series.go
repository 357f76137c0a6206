// Package series provides the core time series data structures used by the
// forecasting engine: the TimeSeries value type, train/test splits, and the
// per-category repository.
package series

import (
	"fmt"
	"math"
	"time"
)

// ID is the categorical key owning exactly one series in a Repository,
// e.g. a region code. Independent series share no mutable state.
type ID string

// TimeSeries is an ordered sequence of (timestamp, value) pairs with
// strictly increasing timestamps and a fixed frequency step. A value of
// math.NaN() marks a missing observation; series fed to the engine must
// already be interpolated and carry no NaN values.
type TimeSeries struct {
	timestamps []time.Time
	values     []float64
}

// New creates a TimeSeries from parallel timestamp and value slices.
// The slices are copied; the inputs stay owned by the caller.
func New(timestamps []time.Time, values []float64) (*TimeSeries, error) {
	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("timestamps and values must have the same length: %d vs %d", len(timestamps), len(values))
	}

	ts := &TimeSeries{
		timestamps: append([]time.Time(nil), timestamps...),
		values:     append([]float64(nil), values...),
	}

	if err := ts.validateOrdering(); err != nil {
		return nil, err
	}

	return ts, nil
}

// NewRegular creates a TimeSeries starting at `start` with a fixed step
// between consecutive points.
func NewRegular(start time.Time, step time.Duration, values []float64) *TimeSeries {
	timestamps := make([]time.Time, len(values))
	for i := range values {
		timestamps[i] = start.Add(time.Duration(i) * step)
	}
	return &TimeSeries{
		timestamps: timestamps,
		values:     append([]float64(nil), values...),
	}
}

// validateOrdering checks strict timestamp ordering and regular spacing.
func (s *TimeSeries) validateOrdering() error {
	for i := 1; i < len(s.timestamps); i++ {
		if !s.timestamps[i].After(s.timestamps[i-1]) {
			return fmt.Errorf("timestamps must be strictly increasing: index %d (%s) not after index %d (%s)",
				i, s.timestamps[i].Format(time.RFC3339), i-1, s.timestamps[i-1].Format(time.RFC3339))
		}
	}

	if len(s.timestamps) >= 3 {
		step := s.timestamps[1].Sub(s.timestamps[0])
		for i := 2; i < len(s.timestamps); i++ {
			if s.timestamps[i].Sub(s.timestamps[i-1]) != step {
				return fmt.Errorf("irregular frequency at index %d: expected step %s, got %s",
					i, step, s.timestamps[i].Sub(s.timestamps[i-1]))
			}
		}
	}

	return nil
}

// Validate checks that the series is ready for model fitting: strictly
// increasing regular timestamps and no missing (NaN) values.
func (s *TimeSeries) Validate() error {
	if err := s.validateOrdering(); err != nil {
		return err
	}
	for i, v := range s.values {
		if math.IsNaN(v) {
			return fmt.Errorf("missing value at index %d (%s): interpolate before forecasting",
				i, s.timestamps[i].Format("2006-01-02"))
		}
		if math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value at index %d", i)
		}
	}
	return nil
}

// Len returns the number of observations.
func (s *TimeSeries) Len() int {
	return len(s.values)
}

// At returns the (timestamp, value) pair at index i.
func (s *TimeSeries) At(i int) (time.Time, float64) {
	return s.timestamps[i], s.values[i]
}

// Value returns the value at index i.
func (s *TimeSeries) Value(i int) float64 {
	return s.values[i]
}

// Timestamp returns the timestamp at index i.
func (s *TimeSeries) Timestamp(i int) time.Time {
	return s.timestamps[i]
}

// Values returns a copy of the value slice.
func (s *TimeSeries) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// Timestamps returns a copy of the timestamp slice.
func (s *TimeSeries) Timestamps() []time.Time {
	return append([]time.Time(nil), s.timestamps...)
}

// Frequency returns the step between consecutive observations, or zero for
// series shorter than two points.
func (s *TimeSeries) Frequency() time.Duration {
	if len(s.timestamps) < 2 {
		return 0
	}
	return s.timestamps[1].Sub(s.timestamps[0])
}

// Start returns the first timestamp, or the zero time for an empty series.
func (s *TimeSeries) Start() time.Time {
	if len(s.timestamps) == 0 {
		return time.Time{}
	}
	return s.timestamps[0]
}

// End returns the last timestamp, or the zero time for an empty series.
func (s *TimeSeries) End() time.Time {
	if len(s.timestamps) == 0 {
		return time.Time{}
	}
	return s.timestamps[len(s.timestamps)-1]
}

// Mean returns the arithmetic mean of the values.
func (s *TimeSeries) Mean() float64 {
	if len(s.values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.values {
		sum += v
	}
	return sum / float64(len(s.values))
}

// Variance returns the sample variance of the values (n-1 denominator).
func (s *TimeSeries) Variance() float64 {
	if len(s.values) < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, v := range s.values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(s.values)-1)
}

// Std returns the sample standard deviation of the values.
func (s *TimeSeries) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Prefix returns a new series containing the first n observations.
func (s *TimeSeries) Prefix(n int) *TimeSeries {
	if n > len(s.values) {
		n = len(s.values)
	}
	if n < 0 {
		n = 0
	}
	return &TimeSeries{
		timestamps: append([]time.Time(nil), s.timestamps[:n]...),
		values:     append([]float64(nil), s.values[:n]...),
	}
}

// Slice returns a new series covering the half-open index range [from, to).
func (s *TimeSeries) Slice(from, to int) *TimeSeries {
	if from < 0 {
		from = 0
	}
	if to > len(s.values) {
		to = len(s.values)
	}
	if from >= to {
		return &TimeSeries{}
	}
	return &TimeSeries{
		timestamps: append([]time.Time(nil), s.timestamps[from:to]...),
		values:     append([]float64(nil), s.values[from:to]...),
	}
}

// SliceRange returns a new series with all observations whose timestamps
// fall in the inclusive range [from, to].
func (s *TimeSeries) SliceRange(from, to time.Time) *TimeSeries {
	lo := 0
	for lo < len(s.timestamps) && s.timestamps[lo].Before(from) {
		lo++
	}
	hi := lo
	for hi < len(s.timestamps) && !s.timestamps[hi].After(to) {
		hi++
	}
	return s.Slice(lo, hi)
}

// FutureTimestamps returns the h timestamps immediately following the end
// of the series, spaced at the series frequency.
func (s *TimeSeries) FutureTimestamps(h int) []time.Time {
	step := s.Frequency()
	if step == 0 {
		step = 24 * time.Hour
	}
	out := make([]time.Time, h)
	last := s.End()
	for i := 0; i < h; i++ {
		out[i] = last.Add(time.Duration(i+1) * step)
	}
	return out
}
