package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis client used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient creates a go-redis client for addr.
func NewRedisClient(addr, password string, db int, timeout time.Duration) *redis.Client {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}
	return redis.NewClient(opts)
}

// RedisStore stores JSON-encoded entries with native expiry.
type RedisStore[V any] struct {
	client RedisClient
	prefix string
}

// NewRedisStore returns a store for one table on a shared client.
func NewRedisStore[V any](client RedisClient, table string) *RedisStore[V] {
	return &RedisStore[V]{client: client, prefix: keyPrefix + table + ":"}
}

// Get implements Store.Get.
func (s *RedisStore[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry[V]{}, false, nil
		}
		return Entry[V]{}, false, err
	}
	var entry Entry[V]
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry[V]{}, false, err
	}
	return entry, true, nil
}

// Set implements Store.Set.
func (s *RedisStore[V]) Set(ctx context.Context, key string, entry Entry[V], ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.client.Set(ctx, s.prefix+key, raw, ttl).Err()
}
