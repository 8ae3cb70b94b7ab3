// Package storage provides the path-keyed document stores that plan records
// and workflow catalogs are persisted in.
//
// Every write replaces the whole document. Stores offer no locking and no
// compare-and-swap; two writers updating the same key race and the last write wins.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Store reads and writes whole documents addressed by slash-separated keys
// such as "add-login.yaml" or "add-login/fix-tests.yaml".
type Store interface {
	// Read returns the full document stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write replaces the document stored under key, creating any parent
	// directories the backend needs.
	Write(ctx context.Context, key string, data []byte) error

	// Exists reports whether a document is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns every key in the store, sorted.
	List(ctx context.Context) ([]string, error)
}

// ValidateKey checks that a key is relative, clean, and stays inside the store root.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %s must be relative", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %s is not clean", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %s escapes the store root", ErrInvalidKey, key)
		}
	}
	return nil
}
