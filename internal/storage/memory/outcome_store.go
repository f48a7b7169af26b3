package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ProcessingOutcome // keyed by outcome ID
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.ProcessingOutcome),
	}
}

// Insert adds a new outcome. Returns ErrDuplicateKey if the ID exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.ProcessingOutcome) error {
	if o == nil || o.ID == "" || o.SecurityID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[o.ID] = copyOutcome(o)
	return nil
}

// GetByID retrieves an outcome by its ID. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByID(_ context.Context, id string) (*domain.ProcessingOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyOutcome(o), nil
}

// GetByRun retrieves all outcomes of one run, ordered by security ID.
func (s *OutcomeStore) GetByRun(_ context.Context, runID string) ([]*domain.ProcessingOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ProcessingOutcome
	for _, o := range s.data {
		if o.RunID == runID {
			result = append(result, copyOutcome(o))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SecurityID < result[j].SecurityID
	})
	return result, nil
}

func copyOutcome(o *domain.ProcessingOutcome) *domain.ProcessingOutcome {
	c := *o
	c.AdjustedFields = slices.Clone(o.AdjustedFields)
	c.Artifacts = slices.Clone(o.Artifacts)
	if o.Failure != nil {
		f := *o.Failure
		c.Failure = &f
	}
	if o.Validation != nil {
		v := *o.Validation
		v.Issues = slices.Clone(o.Validation.Issues)
		v.Warnings = slices.Clone(o.Validation.Warnings)
		c.Validation = &v
	}
	return &c
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
