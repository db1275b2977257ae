package infra

import (
	"context"
	"sync"
	"time"

	"trade_core/internal/domain"
)

type cacheEntry struct {
	order     *domain.Order
	expiresAt time.Time
}

// MemoryCache is the engine-wide idempotency cache: submission results
// keyed by client idempotency keys, expired by TTL. Shared across all
// sequencers; each access is independently locked.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewMemoryCache creates a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached submission result for key, if still live.
func (c *MemoryCache) Get(key string) (*domain.Order, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.order, true
}

// Set stores a submission result against key.
func (c *MemoryCache) Set(key string, o *domain.Order) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{order: o, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartJanitor sweeps expired entries until ctx is cancelled.
func (c *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *MemoryCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
