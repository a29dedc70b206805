package cache

import (
	"context"
	"time"
)

// Cache is the ephemeral key-value store backing presence and typing state.
// Expiry is implicit deletion: a TTL-lapsed entry simply reads as a miss.
// Implementations must be safe for concurrent use; callers treat writes as
// best-effort and never fail a primary operation on a cache error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
