// Package config handles YAML configuration loading with environment variable
// substitution and an ADJUST_* environment overlay.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// After the file is parsed, variables such as ADJUST_PATHS_RAW_DIR or
// ADJUST_BATCH_DELAY override individual fields. Field keys carry no envconfig
// tag so that unprefixed variables like PATH never leak into the config.
package config

import "time"

// Config is the root configuration of an adjustment run.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" split_words:"true"`
	Batch   BatchConfig   `yaml:"batch" split_words:"true"`
	Logging LoggingConfig `yaml:"logging" split_words:"true"`
	Sinks   SinksConfig   `yaml:"sinks" split_words:"true"`
	Metrics MetricsConfig `yaml:"metrics" split_words:"true"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	RawDir    string `yaml:"raw_dir" split_words:"true"`    // tick files, one per security
	FactorDir string `yaml:"factor_dir" split_words:"true"` // daily factor files
	OutputDir string `yaml:"output_dir" split_words:"true"` // artifacts and batch report
	Pattern   string `yaml:"pattern" split_words:"true"`    // glob for tick files within RawDir
}

// BatchConfig bounds a batch run.
type BatchConfig struct {
	MaxFiles int            `yaml:"max_files" split_words:"true"` // 0 = all files
	Delay    *time.Duration `yaml:"delay" split_words:"true"`     // pause after each security; nil = DefaultDelay
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true"`  // debug, info, warn, error
	Format   string `yaml:"format" split_words:"true"` // json, text
	Output   string `yaml:"output" split_words:"true"` // stdout, file, both
	FilePath string `yaml:"file_path" split_words:"true"`
}

// SinksConfig enables the optional result stores. An empty DSN disables a sink.
type SinksConfig struct {
	Postgres   DSNConfig `yaml:"postgres" split_words:"true"`
	Clickhouse DSNConfig `yaml:"clickhouse" split_words:"true"`
}

// DSNConfig holds a single connection string.
type DSNConfig struct {
	DSN string `yaml:"dsn" split_words:"true"`
}

// MetricsConfig controls the Prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
	Path string `yaml:"path" split_words:"true"`
}

// DelayOrDefault returns the configured delay, or DefaultDelay when unset.
func (b BatchConfig) DelayOrDefault() time.Duration {
	if b.Delay == nil {
		return DefaultDelay
	}
	return *b.Delay
}
