// Package hotrow fronts a single authoritative database row that many
// concurrent requests read but few write — the slots jackpot pool, the
// active lottery draw — with a Redis cache-aside read path, so a display
// query doesn't have to round-trip Postgres on every request (§5 "Shared
// resources"). It never sits on the write path: the conditional update
// against the authoritative row (CompareAndSwapJackpotPool) always goes
// straight to Postgres, and the cache is invalidated afterward so the next
// read repopulates from the row that just won the compare-and-swap.
package hotrow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is a typed cache-aside wrapper around a single Redis key. A nil
// *redis.Client makes it a pure pass-through to load, so the dependency is
// optional: deployments without Redis configured get the same behavior,
// just without the cache.
type Cache[T any] struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// New builds a Cache for key, expiring entries after ttl.
func New[T any](client *redis.Client, key string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{client: client, key: key, ttl: ttl}
}

// Get returns the cached value if present and well-formed, otherwise calls
// load, caches its result, and returns it. A Redis error on the read side
// (not just a miss) also falls through to load rather than failing the
// request: the cache is an optimization, never a dependency for
// correctness.
func (c *Cache[T]) Get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	if raw, err := c.client.Get(ctx, c.key).Bytes(); err == nil {
		var cached T
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			return cached, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if encoded, merr := json.Marshal(v); merr == nil {
		c.client.Set(ctx, c.key, encoded, c.ttl)
	}
	return v, nil
}

// Invalidate drops the cached row. Call after any write that changes the
// authoritative copy, so the next Get repopulates from it.
func (c *Cache[T]) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key).Err()
}
