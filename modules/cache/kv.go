package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

// BucketName is the kv-jetstream bucket that holds cached reads.
const BucketName = "task-cache"

// KVCache implements Cache on a JetStream key-value bucket.
type KVCache struct {
	bucket kvjetstream.KVStoragePort
	ttl    time.Duration
	stats  *Stats
}

var _ Cache = (*KVCache)(nil)

// NewKVCache creates a cache over bucket whose default TTL is ttl.
func NewKVCache(bucket kvjetstream.KVStoragePort, ttl time.Duration) *KVCache {
	return &KVCache{
		bucket: bucket,
		ttl:    ttl,
		stats:  &Stats{},
	}
}

// kvKey maps a cache key onto the bucket's key alphabet, which has no ':'.
func kvKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

// Get retrieves a value from the bucket.
func (c *KVCache) Get(_ context.Context, key string, dest any) (bool, error) {
	data, err := c.bucket.Get(kvKey(key))
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("kv get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	atomic.AddUint64(&c.stats.Hits, 1)
	return true, nil
}

// Set stores a value with the given TTL.
func (c *KVCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := c.bucket.Set(kvKey(key), data, ttl); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("kv set error: %w", err)
	}
	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

// InvalidateAll removes the given keys. Missing keys are not an error.
func (c *KVCache) InvalidateAll(_ context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		err := c.bucket.Delete(kvKey(key))
		switch {
		case err == nil:
			atomic.AddUint64(&c.stats.Deletes, 1)
		case errors.Is(err, kvjetstream.ErrKeyNotFound):
		default:
			atomic.AddUint64(&c.stats.Errors, 1)
			errs = append(errs, fmt.Errorf("kv delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of live keys in the bucket.
func (c *KVCache) Len() int {
	keys, err := c.bucket.Keys()
	if err != nil {
		return 0
	}
	return len(keys)
}

// GetStats returns the current cache statistics.
func (c *KVCache) GetStats() StatsSnapshot {
	s := c.stats.snapshot("kv-jetstream")
	s.Entries = c.Len()
	return s
}

// ResetStats resets all statistics counters.
func (c *KVCache) ResetStats() {
	c.stats.reset()
}
