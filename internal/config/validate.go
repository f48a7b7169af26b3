package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.Paths.RawDir == "" {
		return errors.New("paths.raw_dir is required")
	}
	if c.Paths.FactorDir == "" {
		return errors.New("paths.factor_dir is required")
	}
	if _, err := filepath.Match(c.Paths.Pattern, ""); err != nil {
		return fmt.Errorf("paths.pattern %q: %w", c.Paths.Pattern, err)
	}

	if c.Batch.MaxFiles < 0 {
		return fmt.Errorf("batch.max_files must be >= 0, got %d", c.Batch.MaxFiles)
	}
	if d := c.Batch.DelayOrDefault(); d < 0 {
		return fmt.Errorf("batch.delay must be >= 0, got %s", d)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("logging.output must be stdout, file or both, got %q", c.Logging.Output)
	}

	if dsn := c.Sinks.Clickhouse.DSN; dsn != "" && !strings.HasPrefix(dsn, "clickhouse://") {
		return errors.New("sinks.clickhouse.dsn must use the clickhouse:// scheme")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	return nil
}
