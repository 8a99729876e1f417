package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/infoboard/internal/clock"
)

func newMiniredisBackend(t *testing.T) (*miniredis.Miniredis, *Backend) {
	t.Helper()
	mr := miniredis.RunT(t)
	b := NewRedisBackend(NewRedisClient(mr.Addr(), "", 0, time.Second))
	t.Cleanup(func() { _ = b.Close() })
	return mr, b
}

func TestRedisStore_GetSet(t *testing.T) {
	ctx := context.Background()
	mr, b := newMiniredisBackend(t)
	s, err := NewStore[[]string](b, "tasks")
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "k", Entry[[]string]{InsertedAt: at, Value: []string{"a", "b"}}, 2*time.Minute))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got.Value)
	assert.True(t, got.InsertedAt.Equal(at))

	assert.True(t, mr.Exists("infoboard:tasks:k"))
	assert.Equal(t, 2*time.Minute, mr.TTL("infoboard:tasks:k"))

	mr.FastForward(3 * time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "redis should expire the key natively")
}

func TestRedisStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	mr, b := newMiniredisBackend(t)
	s, err := NewStore[int](b, "weather")
	require.NoError(t, err)

	require.NoError(t, mr.Set("infoboard:weather:k", "not json"))
	_, ok, err := s.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

// TestTable_WithRedisStore runs the TTL contract end to end against miniredis.
func TestTable_WithRedisStore(t *testing.T) {
	ctx := context.Background()
	_, b := newMiniredisBackend(t)
	s, err := NewStore[string](b, "transit")
	require.NoError(t, err)

	clk := clock.NewMockClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	table := NewTable[string]("transit", s, 30*time.Second, clk, nil)
	calls := 0

	_, err = table.GetOrFetch(ctx, "k", countingFetch(&calls, "v", nil))
	require.NoError(t, err)
	_, err = table.GetOrFetch(ctx, "k", countingFetch(&calls, "v", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	clk.Advance(31 * time.Second)
	_, err = table.GetOrFetch(ctx, "k", countingFetch(&calls, "v", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	assert.NoError(t, b.Ping(ctx))
}
