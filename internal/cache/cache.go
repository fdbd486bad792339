// Package cache provides the short-term memoization store consulted before
// any remote metadata call. Entries carry absolute expirations; a miss and an
// expired entry are indistinguishable to callers.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a key-value store with per-entry TTLs. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Get returns the cached value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key with an absolute expiration of now+ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
