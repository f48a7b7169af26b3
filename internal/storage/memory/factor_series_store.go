package memory

import (
	"context"
	"slices"
	"sync"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

// FactorSeriesStore is an in-memory implementation of storage.FactorSeriesStore.
type FactorSeriesStore struct {
	mu   sync.RWMutex
	data map[string][]domain.DailyFactorRecord // keyed by run|security
}

// NewFactorSeriesStore creates a new in-memory factor series store.
func NewFactorSeriesStore() *FactorSeriesStore {
	return &FactorSeriesStore{
		data: make(map[string][]domain.DailyFactorRecord),
	}
}

// InsertSeries adds the records of one series. Fails the whole series on any duplicate date.
func (s *FactorSeriesStore) InsertSeries(_ context.Context, runID string, series *domain.FactorSeries) error {
	if runID == "" || series == nil || series.SecurityID == "" {
		return storage.ErrInvalidInput
	}
	if series.Empty() {
		return nil
	}

	key := runSecurityKey(runID, series.SecurityID)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[key]
	seen := make(map[int]struct{}, len(existing)+series.Len())
	for _, r := range existing {
		seen[r.DateKey] = struct{}{}
	}
	for _, r := range series.Records {
		if _, dup := seen[r.DateKey]; dup {
			return storage.ErrDuplicateKey
		}
		seen[r.DateKey] = struct{}{}
	}

	merged := append(slices.Clone(existing), series.Records...)
	slices.SortStableFunc(merged, func(a, b domain.DailyFactorRecord) int {
		return a.DateKey - b.DateKey
	})
	s.data[key] = merged
	return nil
}

// GetBySecurity retrieves the records of one security for one run, ordered by date ASC.
func (s *FactorSeriesStore) GetBySecurity(_ context.Context, runID, securityID string) ([]domain.DailyFactorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.data[runSecurityKey(runID, securityID)]), nil
}

var _ storage.FactorSeriesStore = (*FactorSeriesStore)(nil)
