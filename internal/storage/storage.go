// Package storage defines the key-value persistence interface for saved records.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KV stores whole string values under string keys. Writes replace the entire value; nothing expires.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Keys returns all keys starting with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context, prefix string) (int64, error)

	Close() error
}
