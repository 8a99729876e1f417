//go:build integration
// +build integration

// Package testhelpers sets up live-API integration tests. Tests skip unless
// the credential they need is present in the environment.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/infoboard/internal/cache"
	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/clock"
)

// IntegrationConfig holds live credentials and identifiers read from the environment.
type IntegrationConfig struct {
	TransitAPIKey   string
	TransitCityCode string
	TransitNodeID   string
	WeatherAPIKey   string
	WeatherLocation string
	TodoistToken    string
	CacheBackend    string // "in_memory", "memcached" or "redis"
	MemcachedAddr   string
	RedisAddr       string
}

// GetIntegrationConfig loads integration settings from the environment.
func GetIntegrationConfig() IntegrationConfig {
	return IntegrationConfig{
		TransitAPIKey:   os.Getenv("TAGO_API_KEY"),
		TransitCityCode: envOr("TAGO_CITY_CODE", "25"),
		TransitNodeID:   envOr("TAGO_NODE_ID", "DJB8001793"),
		WeatherAPIKey:   os.Getenv("OPENWEATHER_API_KEY"),
		WeatherLocation: envOr("OPENWEATHER_LOCATION", "Daejeon,KR"),
		TodoistToken:    os.Getenv("TODOIST_TOKEN"),
		CacheBackend:    envOr("INTEGRATION_CACHE_BACKEND", cache.BackendInMemory),
		MemcachedAddr:   envOr("MEMCACHED_ADDRS", "localhost:11211"),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
	}
}

// Require skips the test when value is empty.
func Require(t *testing.T, name, value string) string {
	t.Helper()
	if value == "" {
		t.Skipf("%s not set, skipping integration test", name)
	}
	return value
}

// NewFetcher returns a Fetcher with a short timeout and a test logger.
func NewFetcher(t *testing.T) *client.Fetcher {
	t.Helper()
	return client.NewFetcher(5*time.Second, client.DefaultBreakerSettings(), zaptest.NewLogger(t))
}

// NewTable returns a table on the configured backend, falling back to
// in-memory when memcached or redis is unreachable.
func NewTable[V any](t *testing.T, cfg IntegrationConfig, name string, ttl time.Duration) *cache.Table[V] {
	t.Helper()
	backend := newBackend(t, cfg)
	store, err := cache.NewStore[V](backend, name)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return cache.NewTable[V](name, store, ttl, clock.RealClock{}, zaptest.NewLogger(t))
}

func newBackend(t *testing.T, cfg IntegrationConfig) *cache.Backend {
	var b *cache.Backend
	switch cfg.CacheBackend {
	case cache.BackendMemcached:
		b = cache.NewMemcachedBackend(cache.NewMemcachedClient(cfg.MemcachedAddr, 500*time.Millisecond, 2))
	case cache.BackendRedis:
		b = cache.NewRedisBackend(cache.NewRedisClient(cfg.RedisAddr, "", 0, 500*time.Millisecond))
	default:
		return cache.NewInMemoryBackend(64)
	}
	if err := b.Ping(t.Context()); err != nil {
		t.Logf("%s not available (%v), using in-memory cache", b.Kind(), err)
		_ = b.Close()
		return cache.NewInMemoryBackend(64)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
