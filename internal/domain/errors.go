package domain

import "errors"

var (
	// ErrValidation marks input that failed domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing transaction, history, or breaker record.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected because of the record's current state.
	ErrConflict = errors.New("conflict")
)
