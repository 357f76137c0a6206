package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = 24 * time.Hour

func newDaily(t *testing.T, values ...float64) *TimeSeries {
	t.Helper()
	return NewRegular(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), day, values)
}

func TestNewValidation(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		timestamps []time.Time
		values     []float64
		wantErr    bool
	}{
		{
			name:       "valid daily series",
			timestamps: []time.Time{base, base.Add(day), base.Add(2 * day)},
			values:     []float64{1, 2, 3},
		},
		{
			name:       "length mismatch",
			timestamps: []time.Time{base, base.Add(day)},
			values:     []float64{1},
			wantErr:    true,
		},
		{
			name:       "duplicate timestamp",
			timestamps: []time.Time{base, base, base.Add(day)},
			values:     []float64{1, 2, 3},
			wantErr:    true,
		},
		{
			name:       "decreasing timestamp",
			timestamps: []time.Time{base.Add(day), base, base.Add(2 * day)},
			values:     []float64{1, 2, 3},
			wantErr:    true,
		},
		{
			name:       "irregular spacing",
			timestamps: []time.Time{base, base.Add(day), base.Add(3 * day)},
			values:     []float64{1, 2, 3},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.timestamps, tt.values)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRejectsMissingValues(t *testing.T) {
	s := newDaily(t, 1, math.NaN(), 3)
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing value")

	s = newDaily(t, 1, math.Inf(1), 3)
	assert.Error(t, s.Validate())

	s = newDaily(t, 1, 2, 3)
	assert.NoError(t, s.Validate())
}

func TestStatistics(t *testing.T) {
	s := newDaily(t, 2, 4, 4, 4, 5, 5, 7, 9)

	assert.InDelta(t, 5.0, s.Mean(), 1e-12)
	assert.InDelta(t, 32.0/7.0, s.Variance(), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), s.Std(), 1e-12)
}

func TestStatisticsDegenerate(t *testing.T) {
	empty := newDaily(t)
	assert.Equal(t, 0.0, empty.Mean())
	assert.Equal(t, 0.0, empty.Variance())

	single := newDaily(t, 42)
	assert.Equal(t, 42.0, single.Mean())
	assert.Equal(t, 0.0, single.Variance())
}

func TestSlicing(t *testing.T) {
	s := newDaily(t, 10, 11, 12, 13, 14)

	prefix := s.Prefix(3)
	assert.Equal(t, 3, prefix.Len())
	assert.Equal(t, []float64{10, 11, 12}, prefix.Values())

	mid := s.Slice(1, 4)
	assert.Equal(t, []float64{11, 12, 13}, mid.Values())
	assert.Equal(t, s.Timestamp(1), mid.Start())

	// Out-of-range bounds are clamped.
	assert.Equal(t, 5, s.Slice(-2, 99).Len())
	assert.Equal(t, 0, s.Slice(4, 2).Len())
}

func TestSliceRange(t *testing.T) {
	s := newDaily(t, 10, 11, 12, 13, 14)
	from := s.Timestamp(1)
	to := s.Timestamp(3)

	got := s.SliceRange(from, to)
	assert.Equal(t, []float64{11, 12, 13}, got.Values())
}

func TestSliceCopiesData(t *testing.T) {
	s := newDaily(t, 1, 2, 3)
	values := s.Values()
	values[0] = 99
	assert.Equal(t, 1.0, s.Value(0))
}

func TestFutureTimestamps(t *testing.T) {
	s := newDaily(t, 1, 2, 3)
	future := s.FutureTimestamps(2)

	require.Len(t, future, 2)
	assert.Equal(t, s.End().Add(day), future[0])
	assert.Equal(t, s.End().Add(2*day), future[1])
}

func TestFrequency(t *testing.T) {
	assert.Equal(t, day, newDaily(t, 1, 2).Frequency())
	assert.Equal(t, time.Duration(0), newDaily(t, 1).Frequency())
}
