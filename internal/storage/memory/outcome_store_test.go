package memory

import (
	"context"
	"errors"
	"testing"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

func TestOutcomeStore_InsertAndGet(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	o := &domain.ProcessingOutcome{
		ID:         "o1",
		RunID:      "run-1",
		SecurityID: "600000",
		Success:    true,
		Validation: &domain.ValidationReport{Passed: true, Issues: []string{}},
	}

	if err := store.Insert(ctx, o); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "o1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SecurityID != "600000" {
		t.Errorf("SecurityID mismatch: got %s, want %s", got.SecurityID, "600000")
	}

	// stored copy is isolated from the caller
	o.Validation.Issues = append(o.Validation.Issues, "late")
	got, _ = store.GetByID(ctx, "o1")
	if len(got.Validation.Issues) != 0 {
		t.Errorf("Expected stored issues to stay empty, got %v", got.Validation.Issues)
	}
}

func TestOutcomeStore_DuplicateKey(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	o := &domain.ProcessingOutcome{ID: "o1", RunID: "run-1", SecurityID: "600000"}
	if err := store.Insert(ctx, o); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, o)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestOutcomeStore_NotFound(t *testing.T) {
	store := NewOutcomeStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOutcomeStore_GetByRun(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	for _, o := range []*domain.ProcessingOutcome{
		{ID: "a", RunID: "run-1", SecurityID: "600001"},
		{ID: "b", RunID: "run-1", SecurityID: "000001"},
		{ID: "c", RunID: "run-2", SecurityID: "600000"},
	} {
		if err := store.Insert(ctx, o); err != nil {
			t.Fatalf("Insert %s failed: %v", o.ID, err)
		}
	}

	got, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(got))
	}
	if got[0].SecurityID != "000001" || got[1].SecurityID != "600001" {
		t.Errorf("Expected outcomes ordered by security, got %s, %s", got[0].SecurityID, got[1].SecurityID)
	}
}

func TestOutcomeStore_InvalidInput(t *testing.T) {
	store := NewOutcomeStore()

	err := store.Insert(context.Background(), &domain.ProcessingOutcome{RunID: "run-1"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
