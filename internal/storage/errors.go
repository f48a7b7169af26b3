package storage

import "errors"

// Sink errors. Every store returns these, wrapped, so the pipeline can tell
// a missing run from a repeated write.
var (
	// ErrNotFound is returned when no outcome, tick set or factor series
	// exists for the requested run and security.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a run writes the same security twice.
	// Sinks are keyed by (run_id, security_id) and never overwrite.
	ErrDuplicateKey = errors.New("duplicate key: already written for this run")

	// ErrInvalidInput is returned for a write missing its outcome, run or security id.
	ErrInvalidInput = errors.New("invalid sink input")
)
