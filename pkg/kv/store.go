// Package kv defines the generic key-value capability the auth-state
// adapter (and nothing else in the replica) depends on. Concrete
// backends live in the memkv, rediskv, and pgkv subpackages; callers
// inject whichever Store they want into authstate.New.
package kv

import (
	"context"
	"time"
)

// Store is the capability surface a backing key-value system must
// offer. ttl is optional on Set — a zero value means no expiry.
// Implementations translate ttl into whatever unit their backend
// natively expects.
type Store interface {
	// Get returns the stored value for key, or ("", false, nil) if
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A positive ttl expires the entry after
	// that duration; a zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes every key the store holds, not just one session's
	// subset. Callers that need isolation between sessions must rely on
	// the store's own namespacing, not on selective clearing.
	Clear(ctx context.Context) error
}
