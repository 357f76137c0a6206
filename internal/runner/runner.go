package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tscast/internal/backtest"
	"tscast/internal/config"
	fcerrors "tscast/internal/errors"
	"tscast/internal/evaluate"
	"tscast/internal/series"
	"tscast/internal/strategy"
)

// Result is the outcome of one completed per-series run.
type Result struct {
	Series    series.ID                   `json:"series"`
	Summaries map[string]evaluate.Summary `json:"summaries"`
	Winner    evaluate.Summary            `json:"winner"`
	Forecast  *strategy.Forecast          `json:"forecast"`
	State     *RunState                   `json:"state"`

	// Backtest keeps the raw error records for export and audit.
	Backtest *backtest.Result `json:"-"`
	// Holdout is the withheld tail when a holdout or cutoff split was requested.
	Holdout *series.TimeSeries `json:"-"`
}

// ForecastRunner executes the fixed per-series pipeline: split the series,
// backtest every candidate, select the winner by the configured metric,
// refit it on the full training data, and produce the final forecast.
type ForecastRunner struct {
	cfg        config.ForecastConfig
	logger     *slog.Logger
	backtester *backtest.Backtester
	metric     evaluate.Metric

	// holdoutN withholds the last N points from training when positive.
	holdoutN int
	// cutoff partitions the series at a fixed timestamp when non-zero.
	cutoff time.Time
}

// RunnerOption customizes a ForecastRunner.
type RunnerOption func(*ForecastRunner)

// WithHoldout withholds the last n observations from all fitting so the
// final forecast can be compared against known values.
func WithHoldout(n int) RunnerOption {
	return func(r *ForecastRunner) { r.holdoutN = n }
}

// WithCutoff partitions every series at the given timestamp: observations
// at or before the cutoff train, the rest are withheld.
func WithCutoff(t time.Time) RunnerOption {
	return func(r *ForecastRunner) { r.cutoff = t }
}

// NewForecastRunner validates the forecasting configuration and builds a
// runner. An empty candidate set or an unknown metric is rejected here,
// before any series is touched.
func NewForecastRunner(cfg config.ForecastConfig, logger *slog.Logger, opts ...RunnerOption) (*ForecastRunner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.CandidateStrategies) == 0 {
		return nil, fcerrors.InvalidConfiguration("candidate strategy set is empty")
	}

	metric, err := evaluate.ParseMetric(cfg.SelectionMetric)
	if err != nil {
		return nil, err
	}

	// Resolve the candidate names once so configuration mistakes surface
	// at construction rather than mid-batch.
	if _, err := strategy.FromNames(cfg.CandidateStrategies, strategyOptions(cfg)); err != nil {
		return nil, err
	}

	r := &ForecastRunner{
		cfg:        cfg,
		logger:     logger,
		backtester: backtest.New(logger, cfg.MaxWorkers),
		metric:     metric,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.holdoutN > 0 && !r.cutoff.IsZero() {
		return nil, fcerrors.InvalidConfiguration("holdout and cutoff splits are mutually exclusive")
	}
	return r, nil
}

// strategyOptions maps forecast configuration onto strategy knobs.
func strategyOptions(cfg config.ForecastConfig) strategy.Options {
	return strategy.Options{
		SeasonLength:  cfg.SeasonLength,
		LagOrder:      cfg.LagOrder,
		HiddenUnits:   cfg.HiddenUnits,
		MaxIterations: cfg.MaxIterations,
		Tolerance:     cfg.Tolerance,
		Intervals:     strategy.IntervalMethod(cfg.IntervalMethod),
	}
}

// Run executes the pipeline for one series. On failure the returned state
// carries the failed step and structured cause; no partial forecast is
// produced.
func (r *ForecastRunner) Run(ctx context.Context, id series.ID, ts *series.TimeSeries) (*Result, error) {
	state := NewRunState(uuid.New().String(), string(id))
	state.Start()

	result, err := r.run(ctx, id, ts, state)
	if err != nil {
		state.Fail(err)
		r.logger.ErrorContext(ctx, "series run failed",
			"series", id,
			"failed_steps", state.FailedSteps(),
			"error", err,
		)
		return &Result{Series: id, State: state}, err
	}

	state.Complete()
	result.State = state
	return result, nil
}

func (r *ForecastRunner) run(ctx context.Context, id series.ID, ts *series.TimeSeries, state *RunState) (*Result, error) {
	// Split.
	state.BeginStep(StepSplit)
	train, holdout, err := r.split(ts)
	if err != nil {
		state.FailStep(StepSplit, err)
		return nil, err
	}
	state.CompleteStep(StepSplit)

	strategies, err := strategy.FromNames(r.cfg.CandidateStrategies, strategyOptions(r.cfg))
	if err != nil {
		return nil, err
	}

	// Backtest.
	state.BeginStep(StepBacktest)
	btResult, err := r.backtester.Evaluate(ctx, id, train, strategies, r.cfg.InitialWindowSize, r.cfg.Horizon)
	if err != nil {
		state.FailStep(StepBacktest, err)
		return nil, err
	}
	state.CompleteStep(StepBacktest)

	// Select model.
	state.BeginStep(StepSelectModel)
	summaries := evaluate.SummarizeResult(btResult)
	winner, err := evaluate.Best(id, summaries, r.metric)
	if err != nil {
		state.FailStep(StepSelectModel, err)
		return nil, err
	}
	state.CompleteStep(StepSelectModel)

	r.logger.InfoContext(ctx, "strategy selected",
		"series", id,
		"strategy", winner.Strategy,
		"metric", r.metric,
		"mse", winner.MSE,
		"mape", winner.MAPE,
	)

	// Refit the winner on the full training series.
	state.BeginStep(StepRefit)
	model, err := r.refit(id, train, strategies, winner.Strategy)
	if err != nil {
		state.FailStep(StepRefit, err)
		return nil, err
	}
	state.CompleteStep(StepRefit)

	// Final forecast.
	state.BeginStep(StepForecast)
	forecast, err := model.Forecast(r.cfg.Horizon, r.cfg.ConfidenceLevels)
	if err != nil {
		state.FailStep(StepForecast, err)
		return nil, err
	}
	state.CompleteStep(StepForecast)

	return &Result{
		Series:    id,
		Summaries: summaries,
		Winner:    winner,
		Forecast:  forecast,
		Backtest:  btResult,
		Holdout:   holdout,
	}, nil
}

// split partitions the series at the configured cutoff timestamp or
// holdout size, or trains on the whole series when neither was requested.
func (r *ForecastRunner) split(ts *series.TimeSeries) (train, holdout *series.TimeSeries, err error) {
	var sp *series.Split
	switch {
	case !r.cutoff.IsZero():
		sp, err = series.SplitAt(ts, r.cutoff)
	case r.holdoutN > 0:
		sp, err = series.SplitLastN(ts, r.holdoutN)
	default:
		return ts, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if err := sp.Validate(); err != nil {
		return nil, nil, err
	}
	return sp.Train, sp.Test, nil
}

// refit fits the named winner on the full training series. A winner that
// backtested but cannot refit fails the run, wrapped as NoValidStrategy.
func (r *ForecastRunner) refit(id series.ID, train *series.TimeSeries, strategies []strategy.Strategy, name string) (strategy.FittedModel, error) {
	for _, s := range strategies {
		if s.Name() != name {
			continue
		}
		model, err := s.Fit(train)
		if err != nil {
			return nil, fcerrors.NoValidStrategy(string(id), err)
		}
		return model, nil
	}
	return nil, fcerrors.InvalidConfiguration("selected strategy %q is not among the candidates", name)
}
