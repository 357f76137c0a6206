// Package backtest implements rolling-origin (expanding window) evaluation
// of forecasting strategies against held-out observations.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
	"tscast/internal/strategy"
)

// Record is one held-out forecast error sample: the signed difference
// between the actual value and the forecast for one (origin, step) pair.
// Records are append-only facts; aggregation never edits them.
type Record struct {
	Series   series.ID `json:"series"`
	Strategy string    `json:"strategy"`
	Origin   int       `json:"origin"` // training prefix length at this origin
	Step     int       `json:"step"`   // 1-based horizon step
	Actual   float64   `json:"actual"`
	Forecast float64   `json:"forecast"`
	Error    float64   `json:"error"` // Actual - Forecast
}

// Result holds the evaluation output for one series: per-strategy error
// records ordered by (origin, step), plus any per-origin strategy
// failures encountered along the way.
type Result struct {
	Series   series.ID
	Origins  int
	Records  map[string][]Record
	Failures map[string][]error
}

// FailureCount returns the number of recorded fit/forecast failures for a
// strategy across all origins.
func (r *Result) FailureCount(strategyName string) int {
	return len(r.Failures[strategyName])
}

// Backtester performs rolling-origin cross-validation. Strategies are fit
// independently per origin; no state is shared across origins, so origins
// are evaluated concurrently and merged in origin order at the end.
type Backtester struct {
	logger  *slog.Logger
	workers int
}

// New creates a Backtester. A nil logger falls back to slog.Default and a
// non-positive worker count to the number of CPUs.
func New(logger *slog.Logger, workers int) *Backtester {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Backtester{logger: logger, workers: workers}
}

// Origins returns the number of rolling origins for the given series
// length, initial window, and horizon: L-W-H+1 when a full horizon fits,
// a single truncated origin when only a shorter tail is held out, and 0
// when no held-out point exists at all.
func Origins(length, initialWindow, horizon int) int {
	if length < initialWindow+1 {
		return 0
	}
	n := length - initialWindow - horizon + 1
	if n < 1 {
		return 1
	}
	return n
}

// Evaluate runs the rolling-origin sweep: starting from a training prefix
// of initialWindow points, each origin fits every strategy on the current
// prefix, forecasts up to horizon steps (fewer near the end of the
// series), records the signed error against each actual value, then
// advances the boundary by one step.
func (b *Backtester) Evaluate(
	ctx context.Context,
	id series.ID,
	ts *series.TimeSeries,
	strategies []strategy.Strategy,
	initialWindow, horizon int,
) (*Result, error) {
	if initialWindow <= 0 {
		return nil, fcerrors.InvalidConfiguration("initial window size must be positive, got %d", initialWindow).WithSeries(string(id))
	}
	if horizon <= 0 {
		return nil, fcerrors.InvalidConfiguration("horizon must be positive, got %d", horizon).WithSeries(string(id))
	}
	if len(strategies) == 0 {
		return nil, fcerrors.InvalidConfiguration("candidate strategy set is empty").WithSeries(string(id))
	}
	if ts.Len() < initialWindow+1 {
		return nil, fcerrors.InsufficientHistory(
			"series length %d is shorter than initial window %d plus one held-out point",
			ts.Len(), initialWindow).WithSeries(string(id))
	}

	// Origins are training prefix lengths initialWindow .. L-horizon.
	// Near the series end a shorter forecast is still scored, so the last
	// full-horizon origin is L-horizon; the sweep stops once no held-out
	// point remains.
	lastOrigin := ts.Len() - horizon
	if lastOrigin < initialWindow {
		lastOrigin = initialWindow // partial-horizon origins near the end
	}
	numOrigins := lastOrigin - initialWindow + 1

	b.logger.DebugContext(ctx, "starting rolling-origin evaluation",
		"series", id,
		"length", ts.Len(),
		"initial_window", initialWindow,
		"horizon", horizon,
		"origins", numOrigins,
		"strategies", len(strategies),
	)

	outcomes := make([]originOutcome, numOrigins)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i := 0; i < numOrigins; i++ {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			prefixLen := initialWindow + i
			outcomes[i] = b.evaluateOrigin(id, ts, strategies, prefixLen, horizon)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rolling-origin evaluation cancelled: %w", err)
	}

	// Merge per-origin outcomes in origin order so results are
	// deterministic regardless of scheduling.
	result := &Result{
		Series:   id,
		Origins:  numOrigins,
		Records:  make(map[string][]Record, len(strategies)),
		Failures: make(map[string][]error),
	}
	for _, out := range outcomes {
		for _, s := range strategies {
			result.Records[s.Name()] = append(result.Records[s.Name()], out.records[s.Name()]...)
			if err, ok := out.failures[s.Name()]; ok {
				result.Failures[s.Name()] = append(result.Failures[s.Name()], err)
			}
		}
	}

	return result, nil
}

// originOutcome holds one origin's records and failures keyed by strategy
// name, produced by a single worker and merged after the join.
type originOutcome struct {
	records  map[string][]Record
	failures map[string]error
}

// evaluateOrigin fits every strategy on the prefix of the given length and
// scores its forecast against the subsequent actual values. A strategy
// failing here is recorded, not fatal: the remaining strategies proceed.
func (b *Backtester) evaluateOrigin(
	id series.ID,
	ts *series.TimeSeries,
	strategies []strategy.Strategy,
	prefixLen, horizon int,
) (out originOutcome) {
	out.records = make(map[string][]Record, len(strategies))
	out.failures = make(map[string]error)

	train := ts.Prefix(prefixLen)
	steps := horizon
	if remaining := ts.Len() - prefixLen; remaining < steps {
		steps = remaining
	}

	for _, s := range strategies {
		model, err := s.Fit(train)
		if err != nil {
			out.failures[s.Name()] = fmt.Errorf("origin %d: fit: %w", prefixLen, err)
			continue
		}

		fc, err := model.Forecast(steps, nil)
		if err != nil {
			out.failures[s.Name()] = fmt.Errorf("origin %d: forecast: %w", prefixLen, err)
			continue
		}

		records := make([]Record, steps)
		for h := 0; h < steps; h++ {
			actual := ts.Value(prefixLen + h)
			point := fc.Steps[h].Point
			records[h] = Record{
				Series:   id,
				Strategy: s.Name(),
				Origin:   prefixLen,
				Step:     h + 1,
				Actual:   actual,
				Forecast: point,
				Error:    actual - point,
			}
		}
		out.records[s.Name()] = records
	}

	return out
}
