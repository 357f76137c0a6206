package strategy

import (
	"fmt"
	"math"

	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

// SeasonalNaive forecasts horizon step h as the training value exactly one
// seasonal period before the corresponding future timestamp.
type SeasonalNaive struct {
	season int
}

// NewSeasonalNaive creates a seasonal naive strategy with the given season
// length (e.g. 7 for weekly seasonality on daily data).
func NewSeasonalNaive(season int) *SeasonalNaive {
	return &SeasonalNaive{season: season}
}

// Name implements Strategy.
func (s *SeasonalNaive) Name() string { return "seasonal_naive" }

// Fit implements Strategy.
func (s *SeasonalNaive) Fit(ts *series.TimeSeries) (FittedModel, error) {
	if s.season <= 0 {
		return nil, fcerrors.InvalidConfiguration("season length must be positive, got %d", s.season)
	}
	if ts.Len() < s.season {
		return nil, fcerrors.InsufficientHistory(
			"seasonal_naive requires at least one full season (%d points), got %d",
			s.season, ts.Len()).WithStrategy(s.Name())
	}

	// One-step residuals are the seasonal differences.
	diffs := make([]float64, 0, ts.Len()-s.season)
	for i := s.season; i < ts.Len(); i++ {
		diffs = append(diffs, ts.Value(i)-ts.Value(i-s.season))
	}

	return &seasonalNaiveModel{
		season: s.season,
		sd:     residualStd(diffs, 0),
		train:  ts,
	}, nil
}

type seasonalNaiveModel struct {
	season int
	sd     float64
	train  *series.TimeSeries
}

func (m *seasonalNaiveModel) Strategy() string { return "seasonal_naive" }

// Forecast implements FittedModel. Step h repeats the value at offset
// len - season + ((h-1) mod season); the interval widens by sqrt(k) once
// the horizon wraps into its k-th repeated season.
func (m *seasonalNaiveModel) Forecast(horizon int, levels []float64) (*Forecast, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	levels, err := normalizeLevels(levels)
	if err != nil {
		return nil, err
	}

	n := m.train.Len()
	future := m.train.FutureTimestamps(horizon)
	steps := make([]Step, horizon)
	for h := 1; h <= horizon; h++ {
		point := m.train.Value(n - m.season + ((h - 1) % m.season))
		seasonsAhead := float64((h-1)/m.season + 1)
		sd := m.sd * math.Sqrt(seasonsAhead)
		steps[h-1] = gaussianStep(future[h-1], point, sd, levels)
	}

	return &Forecast{Strategy: "seasonal_naive", Levels: levels, Steps: steps}, nil
}

// String describes the configured season, useful in logs.
func (s *SeasonalNaive) String() string {
	return fmt.Sprintf("seasonal_naive(m=%d)", s.season)
}
