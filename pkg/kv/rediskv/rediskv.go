// Package rediskv is a kv.Store backed by Redis. It passes ttl straight
// through to Redis's native EX semantics — Redis already expects a
// duration, so there is no unit translation to document here (contrast
// pgkv, which stores an explicit expiry timestamp column).
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store adapts a *redis.Client to kv.Store.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client. The caller owns the client's
// lifecycle (construction and Close); Store never opens or closes it —
// mirroring the contract spec.md §5 places on AuthStateAdapter itself.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the stored value for key, or ("", false, nil) if absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("rediskv: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key with an optional ttl, passed straight
// through to Redis's EX/PX expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("rediskv: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key, reporting whether it was present.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rediskv: delete %q: %w", key, err)
	}
	return n > 0, nil
}

// Clear flushes the entire Redis database the client is connected to.
// As documented on kv.Store, this is not session-scoped — callers that
// need isolation should point each session's client at its own Redis
// logical database or use separate key prefixes for everything except
// Clear.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("rediskv: clear: %w", err)
	}
	return nil
}
