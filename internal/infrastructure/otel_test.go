package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInitializeOTelPrometheus(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "tscast-test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
	}, discardLogger())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, providers.Shutdown(context.Background()))
	}()

	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)
}

func TestInitializeOTelDisabled(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "tscast-test",
		MetricExporter: "none",
		EnableMetrics:  true,
	}, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, providers.MeterProvider)
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTelUnknownExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{
		ServiceName:    "tscast-test",
		MetricExporter: "statsd",
		EnableMetrics:  true,
	}, discardLogger())
	require.Error(t, err)
}

func TestEngineMetrics(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "tscast-test",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
	}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateEngineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordSeriesRun(ctx, "demand", "holt", 25*time.Millisecond, nil)
	metrics.RecordSeriesRun(ctx, "tiny", "", time.Millisecond, assert.AnError)
	metrics.RecordBacktestOrigins(ctx, "demand", 4)
	metrics.RecordBacktestOrigins(ctx, "tiny", 0) // non-positive counts are skipped
	metrics.RunStarted(ctx)
	metrics.RunFinished(ctx)

	// A nil receiver is a no-op so callers can run without metrics.
	var disabled *EngineMetrics
	disabled.RecordSeriesRun(ctx, "demand", "holt", time.Millisecond, nil)
	disabled.RecordBacktestOrigins(ctx, "demand", 4)
	disabled.RunStarted(ctx)
	disabled.RunFinished(ctx)
}
