// Package cache implements a small in-memory key/value store with per-entry
// expiration. Expired entries are inert: a Get treats them as absent, so
// correctness never depends on the background sweep having run.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// Cache is a TTL map keyed by string. Safe for concurrent use.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	now   func() time.Time
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		items: make(map[string]entry[V]),
		now:   time.Now,
	}
}

// Get returns the stored value if present and not expired. An expired entry
// it encounters is lazily evicted.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// re-check under the write lock: a Set may have replaced the entry
		if cur, ok := c.items[key]; ok && cur.expired(c.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores the value under key, overwriting unconditionally.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Sweep removes all expired entries. Intended for a low-frequency timer to
// bound memory; Get/Set stay correct whether or not it ever runs.
func (c *Cache[V]) Sweep() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
