package strategy

import (
	"math"

	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

// Naive forecasts every horizon step as the last observed training value.
// Under the implied random-walk model the forecast variance accumulates
// linearly, so interval width grows with sqrt(h).
type Naive struct{}

// NewNaive creates the naive (last value) strategy.
func NewNaive() *Naive {
	return &Naive{}
}

// Name implements Strategy.
func (*Naive) Name() string { return "naive" }

// Fit implements Strategy.
func (n *Naive) Fit(ts *series.TimeSeries) (FittedModel, error) {
	if ts.Len() == 0 {
		return nil, fcerrors.InsufficientHistory("naive requires at least 1 observation").WithStrategy(n.Name())
	}

	// One-step residuals are the first differences of the training series.
	diffs := make([]float64, 0, ts.Len()-1)
	for i := 1; i < ts.Len(); i++ {
		diffs = append(diffs, ts.Value(i)-ts.Value(i-1))
	}

	return &naiveModel{
		last:  ts.Value(ts.Len() - 1),
		sd:    residualStd(diffs, 0),
		train: ts,
	}, nil
}

type naiveModel struct {
	last  float64
	sd    float64
	train *series.TimeSeries
}

func (*naiveModel) Strategy() string { return "naive" }

// Forecast implements FittedModel.
func (m *naiveModel) Forecast(horizon int, levels []float64) (*Forecast, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	levels, err := normalizeLevels(levels)
	if err != nil {
		return nil, err
	}

	future := m.train.FutureTimestamps(horizon)
	steps := make([]Step, horizon)
	for h := 0; h < horizon; h++ {
		sd := m.sd * math.Sqrt(float64(h+1))
		steps[h] = gaussianStep(future[h], m.last, sd, levels)
	}

	return &Forecast{Strategy: "naive", Levels: levels, Steps: steps}, nil
}
