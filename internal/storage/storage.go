// Package storage provides the key-value persistence used for learner state.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key is absent.
var ErrNotFound = errors.New("storage: key not found")

// KV is a string key-value store. Implementations must be safe for
// concurrent use.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
