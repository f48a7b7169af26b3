package reporting

import (
	"context"
	"fmt"
	"time"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

// Generator rebuilds batch outcomes from the outcome ledger.
type Generator struct {
	outcomeStore storage.OutcomeStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(outcomeStore storage.OutcomeStore) *Generator {
	return &Generator{
		outcomeStore: outcomeStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads every outcome of a run and aggregates them.
// StartedAt is the earliest processing start; FinishedAt is the generation time.
func (g *Generator) Generate(ctx context.Context, runID string) (*domain.BatchOutcome, error) {
	outcomes, err := g.outcomeStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load outcomes of run %s: %w", runID, err)
	}
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	b := &domain.BatchOutcome{RunID: runID, FinishedAt: g.now()}
	for _, o := range outcomes {
		started := o.ProcessedAt.Add(-o.Duration)
		if b.StartedAt.IsZero() || started.Before(b.StartedAt) {
			b.StartedAt = started
		}
		b.Add(o)
	}
	return b, nil
}
