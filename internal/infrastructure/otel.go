package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const (
	ServiceName    = "tscast"
	ServiceVersion = "1.0.0"
	MeterName      = "tscast"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		MetricExporter: "prometheus",
		EnableMetrics:  true,
	}
}

// InitializeOTel initializes the OpenTelemetry metric pipeline
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	), nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// Each pipeline gets its own registry so repeated initialization
		// never collides on the default registerer.
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// EngineMetrics holds the forecasting engine's application metrics
type EngineMetrics struct {
	SeriesEvaluated  metric.Int64Counter
	SeriesFailed     metric.Int64Counter
	RunDuration      metric.Float64Histogram
	BacktestOrigins  metric.Int64Counter
	StrategySelected metric.Int64Counter
	ActiveRuns       metric.Int64UpDownCounter
}

// CreateEngineMetrics creates the engine's metric instruments
func CreateEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	seriesEvaluated, err := meter.Int64Counter(
		"series_evaluated_total",
		metric.WithDescription("Total number of series runs completed"),
	)
	if err != nil {
		return nil, err
	}

	seriesFailed, err := meter.Int64Counter(
		"series_failed_total",
		metric.WithDescription("Total number of series runs that failed"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"series_run_duration_seconds",
		metric.WithDescription("Per-series run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	backtestOrigins, err := meter.Int64Counter(
		"backtest_origins_total",
		metric.WithDescription("Total number of rolling origins evaluated"),
	)
	if err != nil {
		return nil, err
	}

	strategySelected, err := meter.Int64Counter(
		"strategy_selected_total",
		metric.WithDescription("Winning strategy count by strategy name"),
	)
	if err != nil {
		return nil, err
	}

	activeRuns, err := meter.Int64UpDownCounter(
		"active_series_runs",
		metric.WithDescription("Number of series runs in flight"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		SeriesEvaluated:  seriesEvaluated,
		SeriesFailed:     seriesFailed,
		RunDuration:      runDuration,
		BacktestOrigins:  backtestOrigins,
		StrategySelected: strategySelected,
		ActiveRuns:       activeRuns,
	}, nil
}

// RecordSeriesRun records the outcome of one per-series run.
func (m *EngineMetrics) RecordSeriesRun(ctx context.Context, seriesID string, winner string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("series", seriesID))
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.SeriesFailed.Add(ctx, 1, attrs)
		return
	}
	m.SeriesEvaluated.Add(ctx, 1, attrs)
	if winner != "" {
		m.StrategySelected.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", winner)))
	}
}

// RecordBacktestOrigins adds the number of rolling origins evaluated for
// one series.
func (m *EngineMetrics) RecordBacktestOrigins(ctx context.Context, seriesID string, origins int) {
	if m == nil || origins <= 0 {
		return
	}
	m.BacktestOrigins.Add(ctx, int64(origins), metric.WithAttributes(attribute.String("series", seriesID)))
}

// RunStarted marks one series run as in flight.
func (m *EngineMetrics) RunStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveRuns.Add(ctx, 1)
}

// RunFinished marks one in-flight series run as done.
func (m *EngineMetrics) RunFinished(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveRuns.Add(ctx, -1)
}

// Shutdown flushes and stops the metric pipeline.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter provider: %w", err)
		}
	}
	return nil
}
