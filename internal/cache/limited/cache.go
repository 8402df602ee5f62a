// Package limited is a size-bounded, TTL-bounded in-memory cache for results
// of slow network lookups such as WHOIS or DNS, keyed by host.
package limited

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cache stores arbitrary lookup results for a fixed TTL.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	clock      func() time.Time
}

// New creates a Cache holding at most maxItems results.
func New(maxItems uint64, defaultTTL time.Duration, clock func() time.Time, logger *zap.Logger) (*Cache, error) {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := NewRistrettoStore(maxItems, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}
	return &Cache{store: store, defaultTTL: defaultTTL, clock: clock}, nil
}

// Set caches value under key. A non-positive TTL disables caching.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c.defaultTTL <= 0 {
		return nil
	}
	return c.store.Set(ctx, key, &entry{value: value, expiresAt: c.clock().Add(c.defaultTTL)})
}

// Get returns the value cached under key.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	e, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Flush drops every cached result.
func (c *Cache) Flush(ctx context.Context) {
	c.store.Flush(ctx)
}

// Close releases ristretto's goroutines.
func (c *Cache) Close() error {
	c.store.Close()
	return nil
}
