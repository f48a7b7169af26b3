package domain

import "time"

// ValidationReport is the result of checking an adjusted tick set.
// Passed is true iff Issues is empty; warnings never affect it.
type ValidationReport struct {
	Passed   bool           `json:"passed"`
	Issues   []string       `json:"issues"`
	Warnings []string       `json:"warnings"`
	Stats    map[string]any `json:"stats"`
}

// FailureKind classifies why a security could not be processed.
type FailureKind string

const (
	FailureNotFound        FailureKind = "NOT_FOUND"
	FailureSchema          FailureKind = "SCHEMA"
	FailureEmptyData       FailureKind = "EMPTY_DATA"
	FailureMergeDegenerate FailureKind = "MERGE_DEGENERATE"
	FailurePersist         FailureKind = "PERSIST"
	FailureInternal        FailureKind = "INTERNAL"
)

// Failure describes a failed security.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Stage   string      `json:"stage"`   // pipeline stage that failed
	Message string      `json:"message"` // full error text
}

// FactorStats summarizes the factors applied to a tick set.
type FactorStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`    // sample standard deviation
	Latest float64 `json:"latest"` // factor of the last tick
}

// RowCounts are the per-stage row counts of one security.
type RowCounts struct {
	Raw            int `json:"raw_rows"`
	Adjusted       int `json:"adjusted_rows"`
	TradingDays    int `json:"trading_days"`
	FactorDays     int `json:"factor_days"`
	InvalidDates   int `json:"invalid_dates"`
	MissingFactor  int `json:"missing_factor_rows"`
	FilledForward  int `json:"filled_forward_rows"`
	FilledBackward int `json:"filled_backward_rows"`
	Defaulted      int `json:"defaulted_rows"`
}

// ProcessingOutcome is the result of processing one security.
// Failure is set iff Success is false. Validation is set once validation ran,
// so a security that failed to persist still carries its report.
type ProcessingOutcome struct {
	ID             string            `json:"id"`
	RunID          string            `json:"run_id"`
	SecurityID     string            `json:"security_id"`
	SourcePath     string            `json:"source_path"`
	Success        bool              `json:"success"`
	Rows           RowCounts         `json:"rows"`
	StartDateKey   int               `json:"start_date"`
	EndDateKey     int               `json:"end_date"`
	TimeRange      string            `json:"time_range"`
	FactorOldest   float64           `json:"factor_oldest"`
	FactorLatest   float64           `json:"factor_latest"`
	FactorMin      float64           `json:"factor_min"`
	FactorMax      float64           `json:"factor_max"`
	FactorSource   string            `json:"factor_source"`
	FactorFallback bool              `json:"factor_fallback"`
	FactorStats    FactorStats       `json:"adjust_factor_stats"`
	AdjustedFields []string          `json:"adjusted_price_fields"`
	Precision      int               `json:"price_decimal_places"`
	Validation     *ValidationReport `json:"validation,omitempty"`
	Artifacts      []string          `json:"output_files"`
	Failure        *Failure          `json:"failure,omitempty"`
	Duration       time.Duration     `json:"processing_time_ns"`
	ProcessedAt    time.Time         `json:"processed_at"`
}

// ErrorMessage returns the failure text, or "" for a successful outcome.
func (o *ProcessingOutcome) ErrorMessage() string {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Message
}

// BatchOutcome aggregates the outcomes of one batch run.
type BatchOutcome struct {
	RunID      string               `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Total      int                  `json:"total"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Successes  []*ProcessingOutcome `json:"successes"`
	Failures   []*ProcessingOutcome `json:"failures"`
	Cancelled  bool                 `json:"cancelled"`
	Reports    []string             `json:"reports"`
}

// Add records one outcome.
func (b *BatchOutcome) Add(o *ProcessingOutcome) {
	b.Total++
	if o.Success {
		b.Succeeded++
		b.Successes = append(b.Successes, o)
		return
	}
	b.Failed++
	b.Failures = append(b.Failures, o)
}

// SuccessRate returns Succeeded / Total, or 0 for an empty batch.
func (b *BatchOutcome) SuccessRate() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.Succeeded) / float64(b.Total)
}

// Duration returns the wall-clock time of the batch.
func (b *BatchOutcome) Duration() time.Duration {
	if b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}
