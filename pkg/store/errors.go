package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no rule has the requested ID.
var ErrNotFound = errors.New("rule not found")

// StorageError is a failure of the storage backend.
type StorageError struct {
	Backend string // "memory", "sqlite", "pgx", ...
	Op      string // Operation that failed ("save", "list", ...)
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, op=%s]: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, op string, err error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Err: err}
}
