// Package cache holds the session revocation cache. It memoizes whether a
// session id is live so authenticated requests do not hit the store every
// time. The store stays the source of truth: every Cache may lose entries.
package cache

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-entry TTLs.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// DeleteAll wipes every entry. Used on controlled shutdown.
	DeleteAll(ctx context.Context) error
}
