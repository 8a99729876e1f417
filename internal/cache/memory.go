package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the per-table entry bound for InMemoryStore.
const DefaultMemorySize = 256

// InMemoryStore keeps entries in a bounded LRU. Safe for concurrent use.
// Expiry is decided by Table; stale entries linger until overwritten or evicted.
type InMemoryStore[V any] struct {
	entries *lru.Cache[string, Entry[V]]
}

// NewInMemoryStore creates an InMemoryStore holding at most size entries
// (DefaultMemorySize when size <= 0).
func NewInMemoryStore[V any](size int) (*InMemoryStore[V], error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, Entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &InMemoryStore[V]{entries: entries}, nil
}

// Get implements Store.Get.
func (s *InMemoryStore[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	entry, ok := s.entries.Get(key)
	return entry, ok, nil
}

// Set implements Store.Set.
func (s *InMemoryStore[V]) Set(ctx context.Context, key string, entry Entry[V], ttl time.Duration) error {
	s.entries.Add(key, entry)
	return nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore[V]) Len() int {
	return s.entries.Len()
}
