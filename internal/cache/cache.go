// Package cache provides a concurrency-safe key/value store with per-entry
// expiry and an optional bypass mode.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is applied when GetOrAdd is called without an explicit TTL.
const DefaultTTL = 30 * time.Minute

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache stores opaque values with lazy expiry. Expired entries are dropped on
// read or by an explicit Sweep; no background timer runs inside the cache.
type Cache struct {
	mu     sync.RWMutex
	data   map[string]entry
	bypass bool

	// now is overridable for tests.
	now func() time.Time
}

// New creates an empty cache. When bypass is true every GetOrAdd invokes its
// factory and skips storage entirely.
func New(bypass bool) *Cache {
	return &Cache{
		data:   make(map[string]entry),
		bypass: bypass,
		now:    time.Now,
	}
}

// Get returns an unexpired stored value. An expired entry counts as a miss and
// is removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := c.data[key]; still && c.now().After(cur.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given TTL from now. ttl<=0 uses DefaultTTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	c.data[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// GetOrAdd returns the cached value for key, or invokes factory, stores its
// result with ttl (DefaultTTL when <=0) and returns it. Factory errors
// propagate uncached. On a miss race the last writer wins; losing results are
// simply overwritten.
func (c *Cache) GetOrAdd(key string, factory func() (any, error), ttl time.Duration) (any, error) {
	if c.bypass {
		return factory()
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		return nil, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Sweep removes every expired entry.
func (c *Cache) Sweep() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.data {
		if now.After(e.expiresAt) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
