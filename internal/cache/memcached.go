package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "infoboard:"

// NewMemcachedClient creates a memcached client shared by all tables. addrs is a
// comma-separated list (e.g. "localhost:11211" or "host1:11211,host2:11211").
// timeout and maxIdleConns use package defaults if zero.
func NewMemcachedClient(addrs string, timeout time.Duration, maxIdleConns int) *memcache.Client {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return client
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// MemcachedStore stores JSON-encoded entries under "infoboard:<table>:<key>".
type MemcachedStore[V any] struct {
	client *memcache.Client
	prefix string
}

// NewMemcachedStore returns a store for one table on a shared client.
func NewMemcachedStore[V any](client *memcache.Client, table string) *MemcachedStore[V] {
	return &MemcachedStore[V]{client: client, prefix: keyPrefix + table + ":"}
}

// Get implements Store.Get. A miss is (zero, false, nil).
func (s *MemcachedStore[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry[V]{}, false, err
	}
	item, err := s.client.Get(s.prefix + key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return Entry[V]{}, false, nil
		}
		return Entry[V]{}, false, err
	}
	var entry Entry[V]
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return Entry[V]{}, false, err
	}
	return entry, true, nil
}

// Set implements Store.Set. ttl becomes the relative memcached expiration.
func (s *MemcachedStore[V]) Set(ctx context.Context, key string, entry Entry[V], ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:        s.prefix + key,
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

// expirationSeconds converts ttl to memcached's relative expiration. Values
// beyond 30 days would be read as unix timestamps, so they are clamped.
func expirationSeconds(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	sec := int32(ttl.Seconds())
	switch {
	case sec <= 0:
		return 1
	case sec > maxRelativeExp:
		return maxRelativeExp
	}
	return sec
}
