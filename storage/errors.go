package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when no document exists under a key.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidKey is returned for keys that are empty, absolute, or escape the store root.
	ErrInvalidKey = errors.New("invalid document key")
)
