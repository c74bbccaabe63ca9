// Package cache defines the embedding cache facade implemented by the
// badger and redis drivers.
package cache

import "context"

// Store is a flat binary key-value store for embedding vectors.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
