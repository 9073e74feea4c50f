// Package cache provides the task read cache with explicit invalidation.
package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Cache is a keyed, TTL'd store of JSON-encoded values.
type Cache interface {
	// Get decodes the value at key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value at key for ttl. A ttl <= 0 uses the cache default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// InvalidateAll removes every key in keys.
	InvalidateAll(ctx context.Context, keys []string) error
	// GetStats returns a snapshot of the counters.
	GetStats() StatsSnapshot
}

// Stats tracks cache statistics.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	Deletes uint64
	Errors  uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Backend   string  `json:"backend"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Errors    uint64  `json:"errors"`
	HitRate   float64 `json:"hit_rate"`
	TotalGets uint64  `json:"total_gets"`
	Entries   int     `json:"entries,omitempty"`
}

func (s *Stats) snapshot(backend string) StatsSnapshot {
	hits := atomic.LoadUint64(&s.Hits)
	misses := atomic.LoadUint64(&s.Misses)
	totalGets := hits + misses

	var hitRate float64
	if totalGets > 0 {
		hitRate = float64(hits) / float64(totalGets) * 100
	}

	return StatsSnapshot{
		Backend:   backend,
		Hits:      hits,
		Misses:    misses,
		Sets:      atomic.LoadUint64(&s.Sets),
		Deletes:   atomic.LoadUint64(&s.Deletes),
		Errors:    atomic.LoadUint64(&s.Errors),
		HitRate:   hitRate,
		TotalGets: totalGets,
	}
}

func (s *Stats) reset() {
	atomic.StoreUint64(&s.Hits, 0)
	atomic.StoreUint64(&s.Misses, 0)
	atomic.StoreUint64(&s.Sets, 0)
	atomic.StoreUint64(&s.Deletes, 0)
	atomic.StoreUint64(&s.Errors, 0)
}
