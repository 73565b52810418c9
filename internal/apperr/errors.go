// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput marks input whose top-level shape is wrong, such as a
	// node tree that is not a JSON object.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotInitialized is returned when a converter that failed to construct
	// is called.
	ErrNotInitialized = errors.New("not initialized")
)
