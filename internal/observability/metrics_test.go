package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tick-adjust-lab/internal/domain"
)

// value returns the counter or gauge value of the series name{labels}, or 0.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue series
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestRecordOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordOutcome(&domain.ProcessingOutcome{
		Success:    true,
		Rows:       domain.RowCounts{Adjusted: 10, FilledForward: 2},
		Validation: &domain.ValidationReport{Passed: true, Warnings: []string{"w"}},
	})
	m.RecordOutcome(&domain.ProcessingOutcome{
		Failure: &domain.Failure{Kind: domain.FailureNotFound},
	})

	assert.Equal(t, 1.0, value(t, reg, "test_pipeline_securities_processed_total", map[string]string{"status": "success"}))
	assert.Equal(t, 1.0, value(t, reg, "test_pipeline_securities_processed_total", map[string]string{"status": "failure"}))
	assert.Equal(t, 1.0, value(t, reg, "test_pipeline_failures_total", map[string]string{"kind": "NOT_FOUND"}))
	assert.Equal(t, 10.0, value(t, reg, "test_pipeline_rows_adjusted_total", nil))
	assert.Equal(t, 2.0, value(t, reg, "test_merge_factor_rows_total", map[string]string{"method": "FORWARD"}))
	assert.Equal(t, 1.0, value(t, reg, "test_validation_warnings_total", nil))
}

func TestRecordBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	start := time.Now()

	m.RecordBatch(&domain.BatchOutcome{Total: 2, Succeeded: 2, StartedAt: start, FinishedAt: start.Add(time.Second)})
	m.RecordBatch(&domain.BatchOutcome{Total: 2, Succeeded: 1, Failed: 1, StartedAt: start, FinishedAt: start})

	assert.Equal(t, 1.0, value(t, reg, "test_batch_runs_total", map[string]string{"status": "success"}))
	assert.Equal(t, 1.0, value(t, reg, "test_batch_runs_total", map[string]string{"status": "partial"}))
	assert.Greater(t, value(t, reg, "test_health_last_successful_batch_timestamp", nil), 0.0)
}

func TestSetCacheStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.SetCacheStats(3, 2, 2)

	assert.Equal(t, 3.0, value(t, reg, "test_factor_cache_hits", nil))
	assert.Equal(t, 2.0, value(t, reg, "test_factor_cache_misses", nil))
	assert.Equal(t, 2.0, value(t, reg, "test_factor_cache_entries", nil))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("merge", time.Second)
	m.RecordOutcome(&domain.ProcessingOutcome{Success: true})
	m.SetCacheStats(1, 2, 3)
	m.RecordSinkWrite("postgres", time.Second, nil)
	m.RecordBatch(&domain.BatchOutcome{})
}
