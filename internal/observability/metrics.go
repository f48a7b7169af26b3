// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tick-adjust-lab/internal/domain"
)

// DefaultNamespace prefixes every metric name when no namespace is given.
const DefaultNamespace = "tick_adjust"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Per-security metrics
	SecuritiesProcessed *prometheus.CounterVec
	Failures            *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	RowsAdjusted        prometheus.Counter
	FactorFills         *prometheus.CounterVec
	ValidationIssues    prometheus.Counter
	ValidationWarnings  prometheus.Counter

	// Factor cache metrics
	FactorCacheHits    prometheus.Gauge
	FactorCacheMisses  prometheus.Gauge
	FactorCacheEntries prometheus.Gauge

	// Sink metrics
	SinkWriteDuration *prometheus.HistogramVec
	SinkWriteErrors   *prometheus.CounterVec

	// Batch metrics
	BatchRunsTotal      *prometheus.CounterVec
	BatchDuration       prometheus.Histogram
	LastSuccessfulBatch prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SecuritiesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "securities_processed_total",
			Help:      "Total number of securities processed by status",
		}, []string{"status"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Total number of failed securities by failure kind",
		}, []string{"kind"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage for one security",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		RowsAdjusted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows_adjusted_total",
			Help:      "Total number of tick rows adjusted",
		}),
		FactorFills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "factor_rows_total",
			Help:      "Tick rows by factor resolution method",
		}, []string{"method"}),
		ValidationIssues: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "issues_total",
			Help:      "Total number of validation issues",
		}),
		ValidationWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "warnings_total",
			Help:      "Total number of validation warnings",
		}),

		FactorCacheHits: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "factor_cache",
			Name:      "hits",
			Help:      "Factor cache hits since the cache was created",
		}),
		FactorCacheMisses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "factor_cache",
			Name:      "misses",
			Help:      "Factor cache misses since the cache was created",
		}),
		FactorCacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "factor_cache",
			Name:      "entries",
			Help:      "Number of cached factor series",
		}),

		SinkWriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_duration_seconds",
			Help:      "Sink write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		SinkWriteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_errors_total",
			Help:      "Total number of failed sink writes",
		}, []string{"sink"}),

		BatchRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by status",
		}, []string{"status"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		LastSuccessfulBatch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_batch_timestamp",
			Help:      "Unix timestamp of last batch with no failures",
		}),
	}
}

// HandlerFor returns an HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordOutcome records the result of one security.
func (m *Metrics) RecordOutcome(o *domain.ProcessingOutcome) {
	if m == nil || o == nil {
		return
	}
	if !o.Success {
		m.SecuritiesProcessed.WithLabelValues("failure").Inc()
		if o.Failure != nil {
			m.Failures.WithLabelValues(string(o.Failure.Kind)).Inc()
		}
		return
	}

	m.SecuritiesProcessed.WithLabelValues("success").Inc()
	m.RowsAdjusted.Add(float64(o.Rows.Adjusted))
	m.FactorFills.WithLabelValues(string(domain.FillForward)).Add(float64(o.Rows.FilledForward))
	m.FactorFills.WithLabelValues(string(domain.FillBackward)).Add(float64(o.Rows.FilledBackward))
	m.FactorFills.WithLabelValues(string(domain.FillDefault)).Add(float64(o.Rows.Defaulted))
	if v := o.Validation; v != nil {
		m.ValidationIssues.Add(float64(len(v.Issues)))
		m.ValidationWarnings.Add(float64(len(v.Warnings)))
	}
}

// SetCacheStats publishes factor cache counters.
func (m *Metrics) SetCacheStats(hits, misses, entries int) {
	if m == nil {
		return
	}
	m.FactorCacheHits.Set(float64(hits))
	m.FactorCacheMisses.Set(float64(misses))
	m.FactorCacheEntries.Set(float64(entries))
}

// RecordSinkWrite records one sink write.
func (m *Metrics) RecordSinkWrite(sink string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SinkWriteDuration.WithLabelValues(sink).Observe(d.Seconds())
	if err != nil {
		m.SinkWriteErrors.WithLabelValues(sink).Inc()
	}
}

// RecordBatch records a finished batch run.
func (m *Metrics) RecordBatch(b *domain.BatchOutcome) {
	if m == nil || b == nil {
		return
	}
	status := "success"
	switch {
	case b.Cancelled:
		status = "cancelled"
	case b.Failed > 0:
		status = "partial"
	}
	m.BatchRunsTotal.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(b.Duration().Seconds())
	if status == "success" {
		m.LastSuccessfulBatch.SetToCurrentTime()
	}
}
