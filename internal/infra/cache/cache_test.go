package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newCache[T any](t *testing.T, ttl time.Duration) (*cache.InMemory[T], *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
	c := cache.New[T](ttl).WithClock(clk.now)
	t.Cleanup(c.Close)
	return c, clk
}

func TestCache_CatalogRoundTrip(t *testing.T) {
	c, _ := newCache[[]domain.Category](t, 5*time.Minute)

	c.Set("catalog", domain.Catalog())
	got, ok := c.Get("catalog")
	require.True(t, ok)
	assert.Len(t, got, 15)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_ExpiresAtTTL(t *testing.T) {
	c, clk := newCache[string](t, time.Minute)

	c.Set("k", "v")
	clk.advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry should still be live before the TTL")

	clk.advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire exactly at the TTL")
	assert.Zero(t, c.Len())
}

func TestCache_Delete(t *testing.T) {
	c, _ := newCache[string](t, time.Minute)

	c.Set("k", "v")
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_LoadFillsOnceThenHits(t *testing.T) {
	c, _ := newCache[int](t, time.Minute)
	var fills atomic.Int32
	fill := func(context.Context) (int, error) {
		fills.Add(1)
		return 7, nil
	}

	v, hit, err := c.Load(context.Background(), "n", fill)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, hit)

	v, hit, err = c.Load(context.Background(), "n", fill)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, hit)
	assert.Equal(t, int32(1), fills.Load())
}

func TestCache_LoadDoesNotCacheErrors(t *testing.T) {
	c, _ := newCache[int](t, time.Minute)
	boom := errors.New("store down")

	_, _, err := c.Load(context.Background(), "n", func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	v, hit, err := c.Load(context.Background(), "n", func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, v)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[int](time.Minute)
	c.Close()
	c.Close()

	c.Set("n", 1)
	v, ok := c.Get("n")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
