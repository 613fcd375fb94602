package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. PIXELQC_LOGGING_LEVEL
const EnvPrefix = "PIXELQC"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Input     InputConfig     `yaml:"input" envconfig:"INPUT"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`   // "stdout", "none"
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"` // "prometheus", "none"
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// InputConfig names the columns read from the two input tables
type InputConfig struct {
	FineIDColumn               string `yaml:"fine_id_column" envconfig:"FINE_ID_COLUMN"`
	FineValueColumn            string `yaml:"fine_value_column" envconfig:"FINE_VALUE_COLUMN"`
	SecondaryIDColumn          string `yaml:"secondary_id_column" envconfig:"SECONDARY_ID_COLUMN"`
	SecondaryMeasurementColumn string `yaml:"secondary_measurement_column" envconfig:"SECONDARY_MEASUREMENT_COLUMN"`

	// Sheet selects the worksheet of xlsx inputs; empty means the first sheet
	Sheet string `yaml:"sheet" envconfig:"SHEET"`

	// BandColumn is the reconciled column bands are evaluated on
	BandColumn string `yaml:"band_column" envconfig:"BAND_COLUMN"`

	// Grouping is "indexed" or "dense_range"
	Grouping string `yaml:"grouping" envconfig:"GROUPING"`

	// DedupeSecondary keeps only the first secondary row per parent id
	DedupeSecondary bool `yaml:"dedupe_secondary" envconfig:"DEDUPE_SECONDARY"`
}

// OutputConfig controls what a run writes
type OutputConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR"`

	// RunID names the output files deterministically; empty gives fixed names
	RunID string `yaml:"run_id" envconfig:"RUN_ID"`

	ScatterCSV  bool   `yaml:"scatter_csv" envconfig:"SCATTER_CSV"`
	Manifest    bool   `yaml:"manifest" envconfig:"MANIFEST"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment (including a .env file), in increasing order of precedence.
// An empty path searches the usual config file locations.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid log output: %q", c.Logging.Output)
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/pixelqc.log"
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %q", c.Telemetry.TraceExporter)
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter: %q", c.Telemetry.MetricExporter)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be within [0, 1], got %v", c.Telemetry.SampleRatio)
	}

	required := map[string]string{
		"input.fine_id_column":               c.Input.FineIDColumn,
		"input.fine_value_column":            c.Input.FineValueColumn,
		"input.secondary_id_column":          c.Input.SecondaryIDColumn,
		"input.secondary_measurement_column": c.Input.SecondaryMeasurementColumn,
		"output.dir":                         c.Output.Dir,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	switch c.Input.Grouping {
	case "indexed", "dense_range":
	default:
		return fmt.Errorf("invalid grouping strategy: %q", c.Input.Grouping)
	}

	if strings.ContainsAny(c.Output.RunID, `/\`) {
		return fmt.Errorf("run id must not contain path separators: %q", c.Output.RunID)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"pixelqc.yaml",
		"configs/pixelqc.yaml",
		"../configs/pixelqc.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration. Column names follow the legacy
// shapefile export (FID_pixelc parent id, grid_code value).
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/pixelqc.log",
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		Input: InputConfig{
			FineIDColumn:               "FID_pixelc",
			FineValueColumn:            "grid_code",
			SecondaryIDColumn:          "FID_pixelc",
			SecondaryMeasurementColumn: "grid_code",
			BandColumn:                 "measurement",
			Grouping:                   "indexed",
		},
		Output: OutputConfig{
			Dir:         DefaultReportsDir,
			ScatterCSV:  true,
			Manifest:    true,
			MetricsFile: "metrics.prom",
		},
	}
}
