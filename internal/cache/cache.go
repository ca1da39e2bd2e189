package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is not present in the cache.
var ErrMiss = errors.New("cache: miss")

// Store is the backend contract shared by the in-memory and Redis drivers.
// Callers treat any non-miss error as a backend failure and fail open.
type Store interface {
	// Get retrieves the raw value for a key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under a key with the given TTL. A zero TTL means
	// the entry does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix removes every key that starts with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Increment atomically bumps a counter and returns the new value.
	// The TTL is applied when the counter is first created.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
