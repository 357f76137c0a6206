package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tscast/internal/config"
	"tscast/internal/exporter"
	"tscast/internal/infrastructure"
	"tscast/internal/runner"
	"tscast/internal/series"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	dataDir := flag.String("data", "", "directory with input series CSV files (overrides config)")
	outputDir := flag.String("out", "", "output directory for reports (overrides config)")
	holdout := flag.Int("holdout", 0, "withhold the last N observations from fitting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}
	if *outputDir != "" {
		cfg.Paths.OutputDir = *outputDir
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("Failed to create output directories", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint, if enabled.
	var metrics *infrastructure.EngineMetrics
	if cfg.Metrics.Enabled {
		providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
			ServiceName:    infrastructure.ServiceName,
			ServiceVersion: infrastructure.ServiceVersion,
			Environment:    os.Getenv("ENVIRONMENT"),
			MetricExporter: "prometheus",
			EnableMetrics:  true,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		defer providers.Shutdown(context.Background())

		metrics, err = infrastructure.CreateEngineMetrics(providers.Meter)
		if err != nil {
			logger.Error("Failed to create engine metrics", "error", err)
			os.Exit(1)
		}

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", providers.PrometheusHTTP)
			logger.Info("Serving metrics", "listen", cfg.Metrics.Listen)
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Error("Metrics endpoint stopped", "error", err)
			}
		}()
	}

	// Load input series.
	logger.Info("Loading series", "data_dir", cfg.Paths.DataDir)
	repo, err := loadRepository(cfg.Paths.DataDir)
	if err != nil {
		logger.Error("Failed to load series", "error", err)
		os.Exit(1)
	}
	if repo.Len() == 0 {
		logger.Error("No series found",
			"data_dir", cfg.Paths.DataDir,
			"hint", "Expecting CSV files with timestamp,value columns")
		os.Exit(1)
	}
	logger.Info("Loaded series", "count", repo.Len())

	// Cancellation on SIGINT/SIGTERM keeps completed results.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []runner.RunnerOption
	if *holdout > 0 {
		opts = append(opts, runner.WithHoldout(*holdout))
	}

	batch, err := runner.NewBatchRunner(cfg.Forecast, logger, metrics, opts...)
	if err != nil {
		logger.Error("Failed to configure batch runner", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting forecast run",
		"candidates", cfg.Forecast.CandidateStrategies,
		"initial_window", cfg.Forecast.InitialWindowSize,
		"horizon", cfg.Forecast.Horizon,
		"metric", cfg.Forecast.SelectionMetric)

	report, runErr := batch.RunBatch(ctx, repo)
	if runErr != nil {
		logger.Warn("Batch run interrupted", "error", runErr,
			"completed", report.Succeeded())
	}

	exp := exporter.NewReportExporter(cfg.Paths.OutputDir)
	if err := exp.ExportAll(report); err != nil {
		logger.Error("Failed to export report", "error", err)
		os.Exit(1)
	}

	logger.Info("Forecast report generated",
		"output_dir", cfg.Paths.OutputDir,
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"duration", report.Duration)

	printLeaderboard(report)

	if runErr != nil {
		os.Exit(1)
	}
}

// loadRepository reads every *.csv file in the data directory as one
// series. Files carry a timestamp,value header; the series ID is the file
// name without extension.
func loadRepository(dataDir string) (*series.Repository, error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan data directory: %w", err)
	}

	repo := series.NewRepository()
	for _, path := range paths {
		id := series.ID(strings.TrimSuffix(filepath.Base(path), ".csv"))
		ts, err := loadSeriesCSV(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if err := repo.Put(id, ts); err != nil {
			return nil, fmt.Errorf("register %s: %w", id, err)
		}
	}
	return repo, nil
}

// loadSeriesCSV parses a two-column timestamp,value file. Timestamps are
// RFC3339 or plain dates.
func loadSeriesCSV(path string) (*series.TimeSeries, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	timeIdx, valueIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "timestamp", "date", "time":
			timeIdx = i
		case "value", "y":
			valueIdx = i
		}
	}
	if timeIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("missing timestamp or value column in header %v", header)
	}

	var (
		timestamps []time.Time
		values     []float64
	)
	for {
		record, err := reader.Read()
		if err != nil {
			break // EOF or malformed tail
		}

		t, err := parseTimestamp(record[timeIdx])
		if err != nil {
			continue // skip rows with unparseable dates
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[valueIdx]), 64)
		if err != nil {
			continue
		}

		timestamps = append(timestamps, t)
		values = append(values, v)
	}

	return series.New(timestamps, values)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// printLeaderboard prints the cross-series strategy comparison.
func printLeaderboard(report *runner.BatchReport) {
	if len(report.Rankings) == 0 {
		return
	}

	fmt.Println("\n=== STRATEGY LEADERBOARD (MEAN MSE ACROSS SERIES) ===")
	fmt.Println("Rank | Strategy       | Mean MSE     | Mean MAPE | Series")
	fmt.Println("-----|----------------|--------------|-----------|-------")
	for i, r := range report.Rankings {
		fmt.Printf("%4d | %-14s | %12.4f | %8.2f%% | %6d\n",
			i+1, r.Strategy, r.MeanMSE, r.MeanMAPE, r.Series)
	}

	fmt.Println("\n=== PER-SERIES WINNERS ===")
	for _, id := range sortedIDs(report) {
		w := report.Results[id].Winner
		fmt.Printf("%-20s -> %-14s (MSE %.4f, MAPE %.2f%%)\n", id, w.Strategy, w.MSE, w.MAPE)
	}
}

func sortedIDs(report *runner.BatchReport) []series.ID {
	ids := make([]series.ID, 0, len(report.Results))
	for id := range report.Results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
