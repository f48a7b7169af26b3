package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

const outcomeColumns = `
	id, run_id, security_id, source_path, success,
	raw_rows, adjusted_rows, trading_days, factor_days, invalid_dates, missing_factor_rows,
	start_date, end_date,
	factor_min, factor_max, factor_oldest, factor_latest, factor_source, factor_fallback,
	adjusted_fields,
	validation_passed, validation_issues, validation_warnings, validation_stats,
	failure_kind, failure_stage, failure_message,
	artifacts, duration_ms, processed_at`

// Insert adds a new outcome. Returns ErrDuplicateKey if the ID exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.ProcessingOutcome) error {
	if o == nil || o.ID == "" || o.SecurityID == "" {
		return storage.ErrInvalidInput
	}

	var (
		passed           *bool
		stats            []byte
		kind, stage, msg *string
	)
	issues, warnings := []string{}, []string{}
	if v := o.Validation; v != nil {
		passed = &v.Passed
		issues = nonNilStrings(v.Issues)
		warnings = nonNilStrings(v.Warnings)
		data, err := json.Marshal(v.Stats)
		if err != nil {
			return fmt.Errorf("marshal validation stats: %w", err)
		}
		stats = data
	}
	if f := o.Failure; f != nil {
		k := string(f.Kind)
		kind, stage, msg = &k, &f.Stage, &f.Message
	}

	query := `INSERT INTO adjustment_outcomes (` + outcomeColumns + `) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		$12, $13,
		$14, $15, $16, $17, $18, $19,
		$20,
		$21, $22, $23, $24,
		$25, $26, $27,
		$28, $29, $30
	)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.RunID, o.SecurityID, o.SourcePath, o.Success,
		o.Rows.Raw, o.Rows.Adjusted, o.Rows.TradingDays, o.Rows.FactorDays, o.Rows.InvalidDates, o.Rows.MissingFactor,
		o.StartDateKey, o.EndDateKey,
		o.FactorMin, o.FactorMax, o.FactorOldest, o.FactorLatest, o.FactorSource, o.FactorFallback,
		nonNilStrings(o.AdjustedFields),
		passed, issues, warnings, stats,
		kind, stage, msg,
		nonNilStrings(o.Artifacts), o.Duration.Milliseconds(), o.ProcessedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// GetByID retrieves an outcome by its ID. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByID(ctx context.Context, id string) (*domain.ProcessingOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM adjustment_outcomes WHERE id = $1`

	o, err := scanOutcome(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get outcome by id: %w", err)
	}
	return o, nil
}

// GetByRun retrieves all outcomes of one run, ordered by security ID.
func (s *OutcomeStore) GetByRun(ctx context.Context, runID string) ([]*domain.ProcessingOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM adjustment_outcomes WHERE run_id = $1 ORDER BY security_id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes by run: %w", err)
	}
	defer rows.Close()

	var outcomes []*domain.ProcessingOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

func scanOutcome(row pgx.Row) (*domain.ProcessingOutcome, error) {
	var (
		o                domain.ProcessingOutcome
		passed           *bool
		issues, warnings []string
		stats            []byte
		kind, stage, msg *string
		durationMs       int64
	)

	err := row.Scan(
		&o.ID, &o.RunID, &o.SecurityID, &o.SourcePath, &o.Success,
		&o.Rows.Raw, &o.Rows.Adjusted, &o.Rows.TradingDays, &o.Rows.FactorDays, &o.Rows.InvalidDates, &o.Rows.MissingFactor,
		&o.StartDateKey, &o.EndDateKey,
		&o.FactorMin, &o.FactorMax, &o.FactorOldest, &o.FactorLatest, &o.FactorSource, &o.FactorFallback,
		&o.AdjustedFields,
		&passed, &issues, &warnings, &stats,
		&kind, &stage, &msg,
		&o.Artifacts, &durationMs, &o.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Duration = time.Duration(durationMs) * time.Millisecond
	if passed != nil {
		o.Validation = &domain.ValidationReport{
			Passed:   *passed,
			Issues:   issues,
			Warnings: warnings,
		}
		if len(stats) > 0 {
			if err := json.Unmarshal(stats, &o.Validation.Stats); err != nil {
				return nil, fmt.Errorf("unmarshal validation stats: %w", err)
			}
		}
	}
	if kind != nil {
		o.Failure = &domain.Failure{Kind: domain.FailureKind(*kind)}
		if stage != nil {
			o.Failure.Stage = *stage
		}
		if msg != nil {
			o.Failure.Message = *msg
		}
	}
	return &o, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
