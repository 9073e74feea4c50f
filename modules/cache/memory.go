package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	data       []byte
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) >= e.ttl
}

// MemoryCache is an in-process Cache with lazy per-key expiry, used as the
// test double of the kv-jetstream backend. Values are stored encoded so
// callers never share memory with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	stats   *Stats
	now     func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty cache whose default TTL is ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		stats:   &Stats{},
		now:     time.Now,
	}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.expired(now) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expired(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		ok = false
	}
	if !ok {
		atomic.AddUint64(&c.stats.Misses, 1)
		return false, nil
	}

	if err := json.Unmarshal(e.data, dest); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	atomic.AddUint64(&c.stats.Hits, 1)
	return true, nil
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	c.entries[key] = entry{data: data, insertedAt: c.now(), ttl: ttl}
	c.mu.Unlock()

	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

// InvalidateAll removes the given keys.
func (c *MemoryCache) InvalidateAll(_ context.Context, keys []string) error {
	var deleted uint64
	c.mu.Lock()
	for _, key := range keys {
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			deleted++
		}
	}
	c.mu.Unlock()

	atomic.AddUint64(&c.stats.Deletes, deleted)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns the current cache statistics.
func (c *MemoryCache) GetStats() StatsSnapshot {
	s := c.stats.snapshot("memory")
	s.Entries = c.Len()
	return s
}

// ResetStats resets all statistics counters.
func (c *MemoryCache) ResetStats() {
	c.stats.reset()
}
