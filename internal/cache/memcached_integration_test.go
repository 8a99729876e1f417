//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"
)

// TestMemcachedStore_GetSet_Integration requires memcached on localhost:11211.
func TestMemcachedStore_GetSet_Integration(t *testing.T) {
	b := NewMemcachedBackend(NewMemcachedClient("localhost:11211", 500*time.Millisecond, 2))
	defer b.Close()
	if err := b.Ping(context.Background()); err != nil {
		t.Skipf("memcached not running: %v", err)
	}

	s, err := NewStore[string](b, "integration")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)
	if err := s.Set(ctx, Key("seattle"), Entry[string]{InsertedAt: at, Value: "v"}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, Key("seattle"))
	if err != nil || !ok {
		t.Fatalf("Get() = (_, %v, %v), want hit", ok, err)
	}
	if got.Value != "v" || !got.InsertedAt.Equal(at) {
		t.Errorf("Get() = %+v", got)
	}

	_, ok, err = s.Get(ctx, Key("nonexistent"))
	if err != nil || ok {
		t.Errorf("Get(miss) = (_, %v, %v), want (false, nil)", ok, err)
	}
}
