// Package config loads and validates the engine configuration. Values are
// resolved in three layers: struct defaults, then an optional YAML file,
// then TSCAST_* environment variables, with later layers winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete engine configuration.
type Config struct {
	Forecast ForecastConfig `yaml:"forecast" envconfig:"FORECAST"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Metrics  MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`
}

// ForecastConfig controls model fitting, backtesting, and selection.
type ForecastConfig struct {
	// CandidateStrategies are the strategy identifiers entered into the
	// per-series competition, e.g. "naive" or "damped_holt".
	CandidateStrategies []string `yaml:"candidate_strategies" envconfig:"CANDIDATE_STRATEGIES" validate:"min=1,dive,oneof=mean naive seasonal_naive ses holt damped_holt mlp"`

	// SeasonLength is the seasonal period used by the seasonal naive
	// strategy. It must be positive when that strategy is a candidate.
	SeasonLength int `yaml:"season_length" envconfig:"SEASON_LENGTH" validate:"min=0"`

	// InitialWindowSize is the training prefix length at the first
	// backtest origin.
	InitialWindowSize int `yaml:"initial_window_size" envconfig:"INITIAL_WINDOW_SIZE" validate:"min=1"`

	// Horizon is the number of steps forecast at each origin and in the
	// final forecast.
	Horizon int `yaml:"horizon" envconfig:"HORIZON" validate:"min=1"`

	// ConfidenceLevels are the two-sided interval levels attached to
	// each forecast step, each strictly inside (0,1).
	ConfidenceLevels []float64 `yaml:"confidence_levels" envconfig:"CONFIDENCE_LEVELS" validate:"min=1,dive,gt=0,lt=1"`

	// SelectionMetric picks the winner of the backtest competition.
	SelectionMetric string `yaml:"selection_metric" envconfig:"SELECTION_METRIC" validate:"oneof=MSE MAPE"`

	// IntervalMethod chooses how interval bounds are derived: "gaussian"
	// for normal-theory widths, "empirical" for residual quantiles.
	IntervalMethod string `yaml:"interval_method" envconfig:"INTERVAL_METHOD" validate:"oneof=gaussian empirical"`

	// MaxWorkers bounds the number of series evaluated concurrently.
	MaxWorkers int `yaml:"max_workers" envconfig:"MAX_WORKERS" validate:"min=1"`

	// MaxIterations bounds iterative parameter optimization.
	MaxIterations int `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"min=1"`

	// Tolerance is the relative objective improvement below which
	// optimization is considered converged.
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gt=0"`

	// LagOrder and HiddenUnits size the MLP strategy.
	LagOrder    int `yaml:"lag_order" envconfig:"LAG_ORDER" validate:"min=1"`
	HiddenUnits int `yaml:"hidden_units" envconfig:"HIDDEN_UNITS" validate:"min=1"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig locates input series and report output.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Listen  string `yaml:"listen" envconfig:"LISTEN"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Forecast: ForecastConfig{
			CandidateStrategies: []string{"mean", "naive", "ses", "holt", "damped_holt"},
			SeasonLength:        0,
			InitialWindowSize:   24,
			Horizon:             12,
			ConfidenceLevels:    []float64{0.80, 0.95},
			SelectionMetric:     "MSE",
			IntervalMethod:      "gaussian",
			MaxWorkers:          4,
			MaxIterations:       200,
			Tolerance:           1e-6,
			LagOrder:            8,
			HiddenUnits:         8,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/tscast.log",
		},
		Paths: PathsConfig{
			DataDir:   "data",
			OutputDir: "reports",
			LogsDir:   "logs",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}

// Load resolves the configuration. An empty path skips the file layer;
// otherwise the file must exist and parse.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("TSCAST", cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the cross-field rules the tag
// language cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	for _, name := range c.Forecast.CandidateStrategies {
		if name == "seasonal_naive" && c.Forecast.SeasonLength <= 0 {
			return fmt.Errorf("config validation: seasonal_naive requires a positive season_length")
		}
	}

	if c.Logging.Output != "stdout" && c.Logging.FilePath == "" {
		return fmt.Errorf("config validation: logging output %q requires file_path", c.Logging.Output)
	}

	return nil
}

// EnsureDirectories creates the output and logs directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogFilePath returns the resolved log file location.
func (c *Config) LogFilePath() string {
	if filepath.IsAbs(c.Logging.FilePath) {
		return c.Logging.FilePath
	}
	return filepath.Clean(c.Logging.FilePath)
}
