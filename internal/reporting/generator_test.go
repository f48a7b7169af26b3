package reporting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
	"tick-adjust-lab/internal/storage/memory"
)

var reportTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func successOutcome(id string, rows int) *domain.ProcessingOutcome {
	return &domain.ProcessingOutcome{
		ID:             "id-" + id,
		RunID:          "run-1",
		SecurityID:     id,
		Success:        true,
		Rows:           domain.RowCounts{Raw: rows, Adjusted: rows, TradingDays: 2, FactorDays: 2},
		StartDateKey:   20230103,
		EndDateKey:     20230104,
		FactorOldest:   0.95,
		FactorLatest:   1.0,
		FactorMin:      0.95,
		FactorMax:      1.0,
		FactorSource:   "/factors/" + id + ".parquet",
		FactorStats:    domain.FactorStats{Min: 0.95, Max: 1.0, Mean: 0.975, Latest: 1.0},
		AdjustedFields: []string{"Price", "AskPrice1", "BidPrice1"},
		Precision:      2,
		Validation: &domain.ValidationReport{
			Passed:   false,
			Issues:   []string{"issue one", "issue two", "issue three"},
			Warnings: []string{},
		},
		Duration:    1500 * time.Millisecond,
		ProcessedAt: reportTime,
	}
}

func failureOutcome(id, msg string) *domain.ProcessingOutcome {
	return &domain.ProcessingOutcome{
		ID:          "id-" + id,
		RunID:       "run-1",
		SecurityID:  id,
		Failure:     &domain.Failure{Kind: domain.FailureNotFound, Stage: "factors", Message: msg},
		Duration:    10 * time.Millisecond,
		ProcessedAt: reportTime,
	}
}

func testBatch() *domain.BatchOutcome {
	b := &domain.BatchOutcome{
		RunID:      "run-1",
		StartedAt:  reportTime.Add(-time.Minute),
		FinishedAt: reportTime,
	}
	b.Add(successOutcome("600001", 12345))
	b.Add(successOutcome("000001", 10))
	b.Add(failureOutcome("600002", strings.Repeat("x", 150)))
	return b
}

func TestRenderMarkdown_ContainsRequiredSections(t *testing.T) {
	md := RenderMarkdown(testBatch())

	sections := []string{
		"# Level-2 Forward Adjustment Batch Report",
		"## Overview",
		"## Succeeded Securities",
		"## Failed Securities",
		"## Sample Detail",
		"## Processing Rules",
	}
	for _, s := range sections {
		if !strings.Contains(md, s) {
			t.Errorf("Expected report to contain %q", s)
		}
	}

	assert.Contains(t, md, "- **Total files:** 3")
	assert.Contains(t, md, "- **Success rate:** 66.7%")
	assert.Contains(t, md, "| 1 | 000001 | 10 | 1.5 | 0.950000 - 1.000000 | 1.000000 |")
	assert.Contains(t, md, "| 2 | 600001 | 12,345 |")
}

func TestRenderMarkdown_TruncatesErrors(t *testing.T) {
	md := RenderMarkdown(testBatch())

	want := "| 1 | 600002 | NOT_FOUND | " + strings.Repeat("x", 97) + "... |"
	assert.Contains(t, md, want)
	assert.NotContains(t, md, strings.Repeat("x", 98))
}

func TestRenderMarkdown_SampleShowsFirstSuccess(t *testing.T) {
	md := RenderMarkdown(testBatch())

	assert.Contains(t, md, "### Security 600001")
	assert.Contains(t, md, "  - issue one\n  - issue two\n  - ... 1 more issues\n")
	assert.NotContains(t, md, "issue three")
}

func TestRenderMarkdown_EmptyBatch(t *testing.T) {
	md := RenderMarkdown(&domain.BatchOutcome{StartedAt: reportTime, FinishedAt: reportTime})

	assert.Contains(t, md, "- **Success rate:** 0.0%")
	assert.NotContains(t, md, "## Succeeded Securities")
	assert.NotContains(t, md, "## Failed Securities")
	assert.Contains(t, md, "## Processing Rules")
}

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "boom", "boom"},
		{"exactly 100", strings.Repeat("a", 100), strings.Repeat("a", 100)},
		{"101", strings.Repeat("a", 101), strings.Repeat("a", 97) + "..."},
		{"newlines", "line one\nline two", "line one line two"},
		{"runes", strings.Repeat("因", 120), strings.Repeat("因", 97) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateError(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderCSV_DeterministicOrder(t *testing.T) {
	b := testBatch()
	outcomes := append(append([]*domain.ProcessingOutcome{}, b.Failures...), b.Successes...)

	csv := RenderCSV(outcomes)
	lines := strings.Split(strings.TrimSpace(csv), "\n")

	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "security_id,success,failure_kind"))
	assert.True(t, strings.HasPrefix(lines[1], "000001,true,,,10,10,2,2,20230103,20230104,0.950000,1.000000,1.000000,false"))
	assert.True(t, strings.HasPrefix(lines[2], "600001,true"))
	assert.True(t, strings.HasPrefix(lines[3], "600002,false,NOT_FOUND,factors"))

	if again := RenderCSV(outcomes); again != csv {
		t.Error("Expected identical CSV on second render")
	}
}

func TestRenderCSV_QuotesErrors(t *testing.T) {
	csv := RenderCSV([]*domain.ProcessingOutcome{failureOutcome("600002", `bad "value", here`)})

	assert.Contains(t, csv, `"bad ""value"", here"`)
}

func TestWriteBatchReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := WriteBatchReports(dir, testBatch())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, filepath.Join(dir, BatchReportFile), paths[0])
	assert.Equal(t, filepath.Join(dir, BatchOutcomesFile), paths[1])
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestSecuritySummary_RoundTrip(t *testing.T) {
	o := successOutcome("600001", 4)
	path := filepath.Join(t.TempDir(), "600001"+SummarySuffix)

	require.NoError(t, WriteSummary(path, NewSecuritySummary(o)))
	s, err := ReadSummary(path)
	require.NoError(t, err)

	assert.Equal(t, "600001", s.StockCode)
	assert.Equal(t, "2024-03-01 09:30:00", s.ProcessingDate)
	assert.Equal(t, "20230103 to 20230104", s.DataPeriod)
	assert.Equal(t, 4, s.TotalRecords)
	assert.Equal(t, 2, s.PriceDecimalPlaces)
	assert.Equal(t, 0.95, s.AdjustFactorMin)
	assert.False(t, s.ValidationPassed)
	assert.Len(t, s.ValidationIssues, 3)
	assert.Equal(t, "0.950000 - 1.000000", s.DataStats["factor_range"])
	assert.Equal(t, "4", s.DataStats["raw_rows"])
}

func TestArtifactPaths(t *testing.T) {
	ticks, factors, summary := ArtifactPaths("out", "600000")

	assert.Equal(t, filepath.Join("out", "600000_level2_forward_adjusted.parquet"), ticks)
	assert.Equal(t, filepath.Join("out", "600000_daily_adjust_factors.parquet"), factors)
	assert.Equal(t, filepath.Join("out", "600000_processing_summary.json"), summary)
}

func TestGenerate_FromOutcomeStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewOutcomeStore()
	for _, o := range testBatch().Successes {
		require.NoError(t, store.Insert(ctx, o))
	}
	require.NoError(t, store.Insert(ctx, failureOutcome("600002", "factor file not found")))

	b, err := NewGenerator(store).WithClock(func() time.Time { return reportTime }).Generate(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, 3, b.Total)
	assert.Equal(t, 2, b.Succeeded)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, reportTime, b.FinishedAt)
	assert.Equal(t, reportTime.Add(-1500*time.Millisecond), b.StartedAt)
}

func TestGenerate_UnknownRun(t *testing.T) {
	_, err := NewGenerator(memory.NewOutcomeStore()).Generate(context.Background(), "missing")

	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
