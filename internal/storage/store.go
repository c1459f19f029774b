// Package storage holds the key/value backends that persist client state
// (scan cache, access tokens) between runs.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("storage: key not found")

// Store is a small key/value store with optional per-key expiry.
// A zero ttl means the value never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Sweeper is implemented by stores that need expired keys removed
// explicitly. Backends with native expiry (redis) do not implement it.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func expiresAt(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}
