package storage

import (
	"context"

	"tick-adjust-lab/internal/domain"
)

// AdjustedTickStore provides access to adjusted_ticks storage.
type AdjustedTickStore interface {
	// InsertBulk adds the adjusted ticks of one security for one run.
	// Returns ErrDuplicateKey if (run_id, security_id) already has rows.
	InsertBulk(ctx context.Context, runID, securityID string, ticks []domain.AdjustedTick) error

	// GetBySecurity retrieves the ticks of one security for one run, in row order.
	GetBySecurity(ctx context.Context, runID, securityID string) ([]domain.AdjustedTick, error)
}

// FactorSeriesStore provides access to daily factor storage.
type FactorSeriesStore interface {
	// InsertSeries adds the factor records of one security for one run.
	// Returns ErrDuplicateKey if (run_id, security_id, date) exists.
	InsertSeries(ctx context.Context, runID string, series *domain.FactorSeries) error

	// GetBySecurity retrieves the records of one security for one run, ordered by date ASC.
	GetBySecurity(ctx context.Context, runID, securityID string) ([]domain.DailyFactorRecord, error)
}

// OutcomeStore provides access to adjustment_outcomes storage.
type OutcomeStore interface {
	// Insert adds a new outcome. Returns ErrDuplicateKey if the outcome ID exists.
	Insert(ctx context.Context, o *domain.ProcessingOutcome) error

	// GetByID retrieves an outcome by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.ProcessingOutcome, error)

	// GetByRun retrieves all outcomes of one run, ordered by security ID.
	GetByRun(ctx context.Context, runID string) ([]*domain.ProcessingOutcome, error)
}

// Sinks groups the optional stores a run writes to. Nil members are skipped.
type Sinks struct {
	Ticks    AdjustedTickStore
	Factors  FactorSeriesStore
	Outcomes OutcomeStore
}

// FactorSeriesStores writes a series to every member and reads from the first.
type FactorSeriesStores []FactorSeriesStore

// InsertSeries inserts into each store in order, stopping at the first error.
func (s FactorSeriesStores) InsertSeries(ctx context.Context, runID string, series *domain.FactorSeries) error {
	for _, store := range s {
		if err := store.InsertSeries(ctx, runID, series); err != nil {
			return err
		}
	}
	return nil
}

// GetBySecurity reads from the first store. Returns ErrNotFound when empty.
func (s FactorSeriesStores) GetBySecurity(ctx context.Context, runID, securityID string) ([]domain.DailyFactorRecord, error) {
	if len(s) == 0 {
		return nil, ErrNotFound
	}
	return s[0].GetBySecurity(ctx, runID, securityID)
}
