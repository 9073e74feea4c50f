package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Config.Backend.
const (
	BackendKV    = "kv"
	BackendRedis = "redis"
)

// Config holds cache configuration.
type Config struct {
	Backend   string
	RedisAddr string
	Prefix    string
	TTL       time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendKV,
		RedisAddr: "localhost:6379",
		Prefix:    "tasks:",
		TTL:       5 * time.Minute,
	}
}

// Module provides the task read cache as a mono module.
type Module struct {
	config Config
	kv     *kvjetstream.PluginModule
	cache  Cache
	redis  *RedisCache
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new cache module.
func NewModule(config Config) *Module {
	return &Module{config: config}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// SetPlugin receives the kv-jetstream plugin registered as "kv".
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "kv" {
		return
	}
	kv, ok := plugin.(*kvjetstream.PluginModule)
	if !ok {
		log.Printf("[cache] Invalid plugin type for %q, expected *kvjetstream.PluginModule", alias)
		return
	}
	m.kv = kv
}

// Start creates the configured backend.
func (m *Module) Start(ctx context.Context) error {
	switch m.config.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         m.config.RedisAddr,
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.redis = NewRedisCache(client, m.config.Prefix, m.config.TTL)
		m.cache = m.redis
		log.Printf("[cache] Connected to Redis at %s (prefix: %s, TTL: %s)", m.config.RedisAddr, m.config.Prefix, m.config.TTL)
	case BackendKV, "":
		if m.kv == nil {
			return fmt.Errorf("required plugin 'kv' not registered")
		}
		bucket := m.kv.Bucket(BucketName)
		if bucket == nil {
			return fmt.Errorf("bucket %q not found in KV plugin", BucketName)
		}
		m.cache = NewKVCache(bucket, m.config.TTL)
		log.Printf("[cache] Using kv-jetstream bucket %s (TTL: %s)", BucketName, m.config.TTL)
	default:
		return fmt.Errorf("unknown cache backend %q", m.config.Backend)
	}

	log.Println("[cache] Module started")
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			log.Printf("[cache] Error closing Redis connection: %v", err)
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	log.Println("[cache] Module stopped")
	return nil
}

// Health reports whether the backend is reachable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.cache == nil {
		return mono.HealthStatus{Healthy: false, Message: "cache not initialized"}
	}
	if m.redis != nil {
		if err := m.redis.Ping(ctx); err != nil {
			return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
		}
	}
	stats := m.cache.GetStats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"backend":  stats.Backend,
			"hit_rate": stats.HitRate,
		},
	}
}

// GetCache returns the cache instance. It is nil before Start.
func (m *Module) GetCache() Cache {
	return m.cache
}
