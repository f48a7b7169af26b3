// Package reporting renders batch and per-security adjustment reports.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"tick-adjust-lab/internal/domain"
)

// Batch report file names.
const (
	BatchReportFile   = "batch_processing_report.md"
	BatchOutcomesFile = "batch_outcomes.csv"
)

// Per-security artifact suffixes, prefixed with the security ID.
const (
	AdjustedTicksSuffix = "_level2_forward_adjusted.parquet"
	DailyFactorsSuffix  = "_daily_adjust_factors.parquet"
	SummarySuffix       = "_processing_summary.json"
)

// ArtifactPaths returns the three artifact paths of a security in dir.
func ArtifactPaths(dir, securityID string) (ticks, factors, summary string) {
	return filepath.Join(dir, securityID+AdjustedTicksSuffix),
		filepath.Join(dir, securityID+DailyFactorsSuffix),
		filepath.Join(dir, securityID+SummarySuffix)
}

// WriteBatchReports writes the Markdown report and the outcomes CSV into dir.
// Returns the written paths.
func WriteBatchReports(dir string, b *domain.BatchOutcome) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	outcomes := make([]*domain.ProcessingOutcome, 0, b.Total)
	outcomes = append(outcomes, b.Successes...)
	outcomes = append(outcomes, b.Failures...)

	files := []struct {
		name, content string
	}{
		{BatchReportFile, RenderMarkdown(b)},
		{BatchOutcomesFile, RenderCSV(outcomes)},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
