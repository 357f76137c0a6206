package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"tscast/internal/config"
	"tscast/internal/evaluate"
	"tscast/internal/infrastructure"
	"tscast/internal/series"
)

// BatchReport aggregates the outcome of one batch run over a repository.
// Per-series failures are part of the report, never a reason to abort the
// remaining series.
type BatchReport struct {
	RunID     string                `json:"run_id"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Results   map[series.ID]*Result `json:"results"`
	Failures  map[series.ID]error   `json:"failures"`
	Rankings  []evaluate.Ranking    `json:"rankings"`
	Cancelled bool                  `json:"cancelled"`
}

// Succeeded returns the number of series with a completed run.
func (r *BatchReport) Succeeded() int { return len(r.Results) }

// Failed returns the number of series whose run failed.
func (r *BatchReport) Failed() int { return len(r.Failures) }

// BatchRunner dispatches independent per-series runs over a bounded worker
// pool. Each series is a unit of work; workers share nothing but the
// result map, written under a mutex after each run completes.
type BatchRunner struct {
	runner   *ForecastRunner
	cfg      config.ForecastConfig
	logger   *slog.Logger
	metrics  *infrastructure.EngineMetrics
	progress *rate.Limiter
}

// NewBatchRunner builds a batch runner. Metrics may be nil when the metric
// pipeline is disabled.
func NewBatchRunner(cfg config.ForecastConfig, logger *slog.Logger, metrics *infrastructure.EngineMetrics, opts ...RunnerOption) (*BatchRunner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fr, err := NewForecastRunner(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &BatchRunner{
		runner:  fr,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		// Progress lines at most once per second regardless of how fast
		// series complete.
		progress: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// RunBatch evaluates every series in the repository. Cancellation stops
// dispatching new series and returns the report with all completed results
// intact.
func (b *BatchRunner) RunBatch(ctx context.Context, repo *series.Repository) (*BatchReport, error) {
	ctx = infrastructure.EnsureRunID(ctx)

	report := &BatchReport{
		RunID:     infrastructure.GetRunID(ctx),
		StartedAt: time.Now(),
		Results:   make(map[series.ID]*Result),
		Failures:  make(map[series.ID]error),
	}

	ids := repo.IDs()
	b.logger.InfoContext(ctx, "starting batch run",
		"series_count", len(ids),
		"max_workers", b.cfg.MaxWorkers,
		"candidates", b.cfg.CandidateStrategies,
	)

	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(b.cfg.MaxWorkers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		ts, ok := repo.Get(id)
		if !ok {
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			b.metrics.RunStarted(ctx)
			defer b.metrics.RunFinished(ctx)

			start := time.Now()
			result, err := b.runner.Run(ctx, id, ts)

			winner := ""
			if err == nil {
				winner = result.Winner.Strategy
				b.metrics.RecordBacktestOrigins(ctx, string(id), result.Backtest.Origins)
			}
			b.metrics.RecordSeriesRun(ctx, string(id), winner, time.Since(start), err)

			mu.Lock()
			if err != nil {
				report.Failures[id] = err
			} else {
				report.Results[id] = result
			}
			done++
			completed := done
			mu.Unlock()

			if b.progress.Allow() {
				b.logger.InfoContext(ctx, "batch progress",
					"completed", completed,
					"total", len(ids),
				)
			}
			return nil
		})
	}

	g.Wait()

	// Cancellation is derived once, after the join point; workers never
	// write it.
	report.Cancelled = ctx.Err() != nil
	report.Duration = time.Since(report.StartedAt)
	report.Rankings = b.rank(report)

	b.logger.InfoContext(ctx, "batch run finished",
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"cancelled", report.Cancelled,
		"duration", report.Duration,
	)

	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// rank builds the cross-series strategy comparison from completed runs.
func (b *BatchRunner) rank(report *BatchReport) []evaluate.Ranking {
	perSeries := make(map[series.ID]map[string]evaluate.Summary, len(report.Results))
	for id, result := range report.Results {
		perSeries[id] = result.Summaries
	}
	return evaluate.Compare(perSeries)
}
