package strategy

import (
	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

// Mean forecasts every horizon step as the arithmetic mean of the training
// values. It is the degenerate baseline every other strategy must beat.
type Mean struct{}

// NewMean creates the mean baseline strategy.
func NewMean() *Mean {
	return &Mean{}
}

// Name implements Strategy.
func (*Mean) Name() string { return "mean" }

// Fit implements Strategy.
func (m *Mean) Fit(ts *series.TimeSeries) (FittedModel, error) {
	if ts.Len() == 0 {
		return nil, fcerrors.InsufficientHistory("mean requires at least 1 observation").WithStrategy(m.Name())
	}

	mean := ts.Mean()
	residuals := make([]float64, ts.Len())
	for i := 0; i < ts.Len(); i++ {
		residuals[i] = ts.Value(i) - mean
	}

	return &meanModel{
		mean:  mean,
		sd:    residualStd(residuals, 1),
		train: ts,
	}, nil
}

type meanModel struct {
	mean  float64
	sd    float64
	train *series.TimeSeries
}

func (*meanModel) Strategy() string { return "mean" }

// Forecast implements FittedModel. The interval width is flat across the
// horizon: the mean of a stationary series does not lose precision with h.
func (m *meanModel) Forecast(horizon int, levels []float64) (*Forecast, error) {
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
		steps[h] = gaussianStep(future[h], m.mean, m.sd, levels)
	}

	return &Forecast{Strategy: "mean", Levels: levels, Steps: steps}, nil
}
