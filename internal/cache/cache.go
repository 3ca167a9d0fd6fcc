// Package cache provides a small in-process TTL cache for computed values
// that are expensive to rebuild, such as the homepage aggregate.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is a concurrency-safe key/value cache whose entries expire after a
// fixed duration. Entries can also be dropped explicitly with Invalidate.
type TTL[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[K]entry[V]
	gen     uint64
}

// New creates a cache whose entries live for ttl.
func New[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return NewWithClock[K, V](ttl, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock[K comparable, V any](ttl time.Duration, now func() time.Time) *TTL[K, V] {
	return &TTL[K, V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the cached value for key if it is present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. A non-positive TTL disables caching.
func (c *TTL[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Generation returns a counter that every Invalidate advances. Take it
// before computing a value and pass it to SetIfCurrent.
func (c *TTL[K, V]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetIfCurrent stores value under key only if no Invalidate happened since
// gen was taken. It reports whether the value was stored.
func (c *TTL[K, V]) SetIfCurrent(key K, value V, gen uint64) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
	return true
}

// Invalidate drops key from the cache.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.gen++
	c.mu.Unlock()
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTL[K, V]) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
