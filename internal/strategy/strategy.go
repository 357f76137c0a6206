// Package strategy implements the polymorphic forecasting strategy family.
// Every strategy shares one contract: Fit a training series into an
// immutable FittedModel, then ask the model for a horizon forecast with
// prediction intervals.
package strategy

import (
	"math"
	"sort"
	"time"

	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

// Strategy fits a forecasting model to a training series.
type Strategy interface {
	// Name returns the stable identifier used in configuration and reports.
	Name() string

	// Fit trains the strategy on the given series. The returned model is
	// immutable; fitting the same strategy again produces a fresh model.
	Fit(ts *series.TimeSeries) (FittedModel, error)
}

// FittedModel produces forecasts from learned parameters. Implementations
// never mutate after Fit, so a model may be shared across goroutines.
type FittedModel interface {
	// Strategy returns the name of the strategy that produced this model.
	Strategy() string

	// Forecast produces `horizon` future steps with two-sided prediction
	// interval bounds for each requested confidence level in (0,1).
	Forecast(horizon int, levels []float64) (*Forecast, error)
}

// Interval is a two-sided prediction interval bound pair.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Step is a single horizon step of a forecast.
type Step struct {
	Timestamp time.Time  `json:"timestamp"`
	Point     float64    `json:"point"`
	Bounds    []Interval `json:"bounds"` // parallel to Forecast.Levels
}

// Forecast is an ordered sequence of horizon steps. It is created once by
// FittedModel.Forecast and never mutated afterwards.
type Forecast struct {
	Strategy string    `json:"strategy"`
	Levels   []float64 `json:"levels"` // confidence levels for Step.Bounds
	Steps    []Step    `json:"steps"`
}

// Points returns the point estimates of all steps.
func (f *Forecast) Points() []float64 {
	out := make([]float64, len(f.Steps))
	for i, s := range f.Steps {
		out[i] = s.Point
	}
	return out
}

// validateHorizon rejects non-positive horizons before any model math runs.
func validateHorizon(horizon int) error {
	if horizon <= 0 {
		return fcerrors.InvalidConfiguration("horizon must be positive, got %d", horizon)
	}
	return nil
}

// normalizeLevels sorts and validates confidence levels.
func normalizeLevels(levels []float64) ([]float64, error) {
	out := append([]float64(nil), levels...)
	sort.Float64s(out)
	for _, l := range out {
		if l <= 0 || l >= 1 {
			return nil, fcerrors.InvalidConfiguration("confidence level must be in (0,1), got %v", l)
		}
	}
	return out, nil
}

// zScore returns the two-sided standard normal quantile for a confidence
// level: P(|Z| <= z) = level.
func zScore(level float64) float64 {
	return math.Sqrt2 * math.Erfinv(level)
}

// gaussianStep assembles a forecast step assuming Gaussian innovation
// residuals with the given per-step standard deviation.
func gaussianStep(ts time.Time, point, sd float64, levels []float64) Step {
	bounds := make([]Interval, len(levels))
	for i, l := range levels {
		w := zScore(l) * sd
		bounds[i] = Interval{Lower: point - w, Upper: point + w}
	}
	return Step{Timestamp: ts, Point: point, Bounds: bounds}
}

// residualStd computes the standard deviation of residuals with the given
// degrees-of-freedom correction. It returns 0 for degenerate inputs, so
// constant series produce zero-width intervals instead of NaN.
func residualStd(residuals []float64, params int) float64 {
	if len(residuals) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, r := range residuals {
		sumSq += r * r
	}
	df := float64(len(residuals) - params)
	if df < 1 {
		df = 1
	}
	return math.Sqrt(sumSq / df)
}

// FromNames resolves configured strategy identifiers into strategy
// instances. Options carries the knobs individual variants need.
func FromNames(names []string, opts Options) ([]Strategy, error) {
	if len(names) == 0 {
		return nil, fcerrors.InvalidConfiguration("candidate strategy set is empty")
	}

	out := make([]Strategy, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fcerrors.InvalidConfiguration("duplicate candidate strategy %q", name)
		}
		seen[name] = true

		s, err := byName(name, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Options carries per-variant configuration for strategy construction.
type Options struct {
	// SeasonLength is the seasonal period for SeasonalNaive, e.g. 7.
	SeasonLength int
	// LagOrder is the sliding window size for the MLP regressor.
	LagOrder int
	// HiddenUnits is the MLP hidden layer width.
	HiddenUnits int
	// MaxIterations bounds every numerical optimization loop.
	MaxIterations int
	// Tolerance is the convergence tolerance for numerical optimization.
	Tolerance float64
	// Intervals selects Gaussian or empirical-quantile interval derivation
	// for the exponential smoothing family.
	Intervals IntervalMethod
}

// IntervalMethod selects how the smoothing family derives interval widths.
type IntervalMethod string

const (
	// IntervalGaussian assumes Gaussian innovation residuals.
	IntervalGaussian IntervalMethod = "gaussian"
	// IntervalEmpirical uses empirical quantiles of in-sample residuals.
	IntervalEmpirical IntervalMethod = "empirical"
)

// Defaults used when Options fields are zero.
const (
	defaultLagOrder      = 7
	defaultHiddenUnits   = 8
	defaultMaxIterations = 200
	defaultTolerance     = 1e-6
)

func (o Options) withDefaults() Options {
	if o.LagOrder <= 0 {
		o.LagOrder = defaultLagOrder
	}
	if o.HiddenUnits <= 0 {
		o.HiddenUnits = defaultHiddenUnits
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaultTolerance
	}
	if o.Intervals == "" {
		o.Intervals = IntervalGaussian
	}
	return o
}

func byName(name string, opts Options) (Strategy, error) {
	opts = opts.withDefaults()
	switch name {
	case "mean":
		return NewMean(), nil
	case "naive":
		return NewNaive(), nil
	case "seasonal_naive":
		if opts.SeasonLength <= 0 {
			return nil, fcerrors.InvalidConfiguration("seasonal_naive requires a positive season length")
		}
		return NewSeasonalNaive(opts.SeasonLength), nil
	case "ses":
		return NewSimpleSmoothing(opts), nil
	case "holt":
		return NewHolt(opts), nil
	case "damped_holt":
		return NewDampedHolt(opts), nil
	case "mlp":
		return NewMLP(opts), nil
	default:
		return nil, fcerrors.InvalidConfiguration("unknown strategy %q", name)
	}
}

// Names lists all recognized strategy identifiers.
func Names() []string {
	return []string{"mean", "naive", "seasonal_naive", "ses", "holt", "damped_holt", "mlp"}
}
