package journal

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert violates a unique
	// constraint. Deterministic IDs make replayed writes hit this;
	// callers treat it as already-journaled, not as failure.
	ErrDuplicateKey = errors.New("duplicate key")
)
