// Package kv defines the key-value store interface backing the job lease and
// result cache. Implementations must provide atomic set-if-absent semantics;
// everything else in the lease layer is built on that primitive.
package kv

import (
	"context"
	"time"
)

// Store is a string-keyed store with per-key expiry.
type Store interface {
	// Get returns the value for key, or found=false if the key is absent or
	// the store considers it expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores the value, overwriting any prior entry. A zero ttl means no
	// expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores the value only if the key is absent (or expired) and
	// reports whether it won. Concurrent callers for the same key must see
	// exactly one true.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
