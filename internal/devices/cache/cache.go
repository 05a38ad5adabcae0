package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a cached read stays fresh.
const DefaultTTL = 5 * time.Minute

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache is a read-through snapshot cache with a fixed time-to-live.
// Entries go stale after TTL and are evicted on the next lookup.
type Cache[V any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	clock     Clock
	entries   map[string]entry[V]
	lastSweep time.Time
}

// Option configures the cache.
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock Clock
}

// WithTTL overrides the default time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New constructs an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{ttl: DefaultTTL, clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		ttl:       o.ttl,
		clock:     o.clock,
		entries:   make(map[string]entry[V]),
		lastSweep: o.clock.Now(),
	}
}

// TTL returns the configured time-to-live.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns a fresh value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock.Now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key stamped with the current time.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil {
		return
	}
	now := c.clock.Now()
	c.mu.Lock()
	if now.Sub(c.lastSweep) >= c.ttl {
		c.sweepLocked(now)
	}
	c.entries[key] = entry[V]{value: value, fetchedAt: now}
	c.mu.Unlock()
}

// sweepLocked drops every stale entry, including keys nobody reads again.
func (c *Cache[V]) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
	c.lastSweep = now
}

// Delete evicts key.
func (c *Cache[V]) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePrefix evicts every key starting with prefix.
func (c *Cache[V]) DeletePrefix(prefix string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Purge evicts everything.
func (c *Cache[V]) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
