package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPattern     = "*.parquet"
	DefaultDelay       = 100 * time.Millisecond
	DefaultOutputDir   = "output"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultLogOutput   = "stdout"
	DefaultLogFile     = "logs/adjust.log"
	DefaultMetricsPath = "/metrics"
)

func (c *Config) applyDefaults() {
	if c.Paths.Pattern == "" {
		c.Paths.Pattern = DefaultPattern
	}
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = DefaultOutputDir
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultLogOutput
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
