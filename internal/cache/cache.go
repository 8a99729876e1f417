// Package cache implements the keyed TTL cache shared by the normalizers.
//
// A Table wraps a Store backend and implements get-or-fetch: a hit younger than
// the table TTL is returned without calling fetch; otherwise fetch runs and, only
// on success, its result is stored with the current time. A failed fetch writes
// nothing and never falls back to an older entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/infoboard/internal/clock"
	"github.com/kjstillabower/infoboard/internal/observability"
)

// Entry is a cached value and the time it was inserted.
type Entry[V any] struct {
	InsertedAt time.Time `json:"insertedAt"`
	Value      V         `json:"value"`
}

// Store is a cache backend. Get returns (entry, true, nil) when the key is
// present regardless of age; freshness is decided by Table. ttl passed to Set
// is a hint for backends with native expiry.
type Store[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Set(ctx context.Context, key string, entry Entry[V], ttl time.Duration) error
}

// Key derives a backend key from a credential/query tuple. Parts are hashed so
// credentials never appear verbatim in backend keys, and NUL separation keeps
// ("ab","c") distinct from ("a","bc").
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Table is one normalizer's cache table. Safe for concurrent use when the
// backing Store is. A nil *Table always calls fetch.
type Table[V any] struct {
	name     string
	store    Store[V]
	ttl      time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	stampede *stampedeTracker
}

// NewTable creates a Table. name labels metrics and logs; ttl <= 0 disables caching.
func NewTable[V any](name string, store Store[V], ttl time.Duration, clk clock.Clock, logger *zap.Logger) *Table[V] {
	return &Table[V]{
		name:     name,
		store:    store,
		ttl:      ttl,
		clock:    clock.OrReal(clk),
		logger:   observability.OrNop(logger),
		stampede: newStampedeTracker(),
	}
}

// Name returns the table name.
func (t *Table[V]) Name() string {
	return t.name
}

// TTL returns the table TTL.
func (t *Table[V]) TTL() time.Duration {
	return t.ttl
}

// GetOrFetch returns the fresh cached value for key or calls fetch.
// Backend read errors are treated as misses and backend write errors are logged;
// neither fails the call. Concurrent misses on one key are not coalesced and the
// last successful writer's value is retained.
func (t *Table[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if t == nil || t.store == nil || t.ttl <= 0 {
		return fetch(ctx)
	}

	entry, ok, err := t.store.Get(ctx, key)
	switch {
	case err != nil:
		observability.CacheErrorsTotal.WithLabelValues(t.name, "get").Inc()
		t.logger.Warn("cache get failed", zap.String("table", t.name), zap.Error(err))
	case ok && t.fresh(entry):
		observability.CacheHitsTotal.WithLabelValues(t.name).Inc()
		return entry.Value, nil
	}
	observability.CacheMissesTotal.WithLabelValues(t.name).Inc()

	if n := t.stampede.RecordMiss(key); n > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(t.name).Inc()
	}
	defer t.stampede.RecordDone(key)

	value, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	if setErr := t.store.Set(ctx, key, Entry[V]{InsertedAt: t.clock.Now(), Value: value}, t.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues(t.name, "set").Inc()
		t.logger.Warn("cache set failed", zap.String("table", t.name), zap.Error(setErr))
	}
	return value, nil
}

// fresh reports whether entry is younger than the TTL. Entries stamped in the
// future (clock moved backwards) are treated as stale.
func (t *Table[V]) fresh(entry Entry[V]) bool {
	age := t.clock.Now().Sub(entry.InsertedAt)
	return age >= 0 && age < t.ttl
}
