package cache

import (
	"context"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
)

// Backend kinds accepted in configuration.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Backend owns the connection shared by every table's store.
type Backend struct {
	kind       string
	memorySize int
	memcached  *memcache.Client
	redis      *redis.Client
}

// NewInMemoryBackend returns a backend whose stores are per-table LRUs.
func NewInMemoryBackend(size int) *Backend {
	return &Backend{kind: BackendInMemory, memorySize: size}
}

// NewMemcachedBackend wraps a memcached client.
func NewMemcachedBackend(client *memcache.Client) *Backend {
	return &Backend{kind: BackendMemcached, memcached: client}
}

// NewRedisBackend wraps a redis client.
func NewRedisBackend(client *redis.Client) *Backend {
	return &Backend{kind: BackendRedis, redis: client}
}

// Kind returns the backend kind.
func (b *Backend) Kind() string {
	return b.kind
}

// NewStore creates the store for one table on b.
func NewStore[V any](b *Backend, table string) (Store[V], error) {
	switch b.kind {
	case BackendInMemory:
		return NewInMemoryStore[V](b.memorySize)
	case BackendMemcached:
		return NewMemcachedStore[V](b.memcached, table), nil
	case BackendRedis:
		return NewRedisStore[V](b.redis, table), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", b.kind)
	}
}

// Ping checks backend reachability. Always nil for in-memory.
func (b *Backend) Ping(ctx context.Context) error {
	switch b.kind {
	case BackendMemcached:
		return b.memcached.Ping()
	case BackendRedis:
		return b.redis.Ping(ctx).Err()
	}
	return nil
}

// Close releases backend connections. Call during shutdown.
func (b *Backend) Close() error {
	switch b.kind {
	case BackendMemcached:
		return b.memcached.Close()
	case BackendRedis:
		return b.redis.Close()
	}
	return nil
}
