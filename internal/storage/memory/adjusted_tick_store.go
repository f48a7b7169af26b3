package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

// AdjustedTickStore is an in-memory implementation of storage.AdjustedTickStore.
type AdjustedTickStore struct {
	mu   sync.RWMutex
	data map[string][]domain.AdjustedTick // keyed by run|security
}

// NewAdjustedTickStore creates a new in-memory adjusted tick store.
func NewAdjustedTickStore() *AdjustedTickStore {
	return &AdjustedTickStore{
		data: make(map[string][]domain.AdjustedTick),
	}
}

func runSecurityKey(runID, securityID string) string {
	return fmt.Sprintf("%s|%s", runID, securityID)
}

// InsertBulk adds the ticks of one security. Returns ErrDuplicateKey if the pair has rows.
func (s *AdjustedTickStore) InsertBulk(_ context.Context, runID, securityID string, ticks []domain.AdjustedTick) error {
	if runID == "" || securityID == "" {
		return storage.ErrInvalidInput
	}
	if len(ticks) == 0 {
		return nil
	}

	key := runSecurityKey(runID, securityID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = copyTicks(ticks)
	return nil
}

// GetBySecurity retrieves the ticks of one security for one run, in row order.
func (s *AdjustedTickStore) GetBySecurity(_ context.Context, runID, securityID string) ([]domain.AdjustedTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyTicks(s.data[runSecurityKey(runID, securityID)]), nil
}

func copyTicks(in []domain.AdjustedTick) []domain.AdjustedTick {
	if in == nil {
		return nil
	}
	out := make([]domain.AdjustedTick, len(in))
	for i, t := range in {
		c := t
		c.Prices = maps.Clone(t.Prices)
		c.Quantities = maps.Clone(t.Quantities)
		c.Extra = maps.Clone(t.Extra)
		c.Raw = maps.Clone(t.Raw)
		out[i] = c
	}
	return out
}

var _ storage.AdjustedTickStore = (*AdjustedTickStore)(nil)
