package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestCacheFreshThenStale(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[int](WithClock(clock))
	require.Equal(t, DefaultTTL, c.TTL())

	c.Set("list:u1", 42)
	clock.now = clock.now.Add(DefaultTTL - time.Second)
	got, ok := c.Get("list:u1")
	require.True(t, ok)
	require.Equal(t, 42, got)

	clock.now = clock.now.Add(time.Second)
	_, ok = c.Get("list:u1")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestCacheDeletePrefix(t *testing.T) {
	c := New[string](WithTTL(time.Minute))
	c.Set("list:u1", "a")
	c.Set("search:u1:tv", "b")
	c.Set("get:u1:1", "c")
	c.Set("list:u2", "d")

	c.DeletePrefix("search:u1:")
	c.Delete("list:u1")

	_, ok := c.Get("search:u1:tv")
	require.False(t, ok)
	_, ok = c.Get("list:u1")
	require.False(t, ok)
	_, ok = c.Get("get:u1:1")
	require.True(t, ok)
	_, ok = c.Get("list:u2")
	require.True(t, ok)

	c.Purge()
	require.Equal(t, 0, c.Len())
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache[int]
	c.Set("k", 1)
	_, ok := c.Get("k")
	require.False(t, ok)
	c.Delete("k")
	c.DeletePrefix("k")
	require.Equal(t, 0, c.Len())
}

func TestCacheSetSweepsExpiredEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[int](WithClock(clock), WithTTL(time.Minute))
	for i := 0; i < 500; i++ {
		c.Set(fmt.Sprintf("search:u1:q%d", i), i)
	}
	require.Equal(t, 500, c.Len())

	clock.now = clock.now.Add(30 * time.Second)
	c.Set("get:u1:fresh", 1)
	require.Equal(t, 501, c.Len())

	clock.now = clock.now.Add(45 * time.Second)
	c.Set("list:u1", 2)
	// the 500 searches are stale, the get entry is not
	require.Equal(t, 2, c.Len())
	_, ok := c.Get("get:u1:fresh")
	require.True(t, ok)
}
