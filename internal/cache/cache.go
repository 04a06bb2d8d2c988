// Package cache provides a thread-safe cache with per-entry expiration.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache stores key-value pairs that each expire ttl after being set.
// Expired entries are dropped lazily on access and in bulk by Sweep.
type TTLCache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	ttl  time.Duration
}

// New creates a TTLCache whose entries live for ttl after each Set.
func New[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data: make(map[K]entry[V]),
		ttl:  ttl,
	}
}

// Get returns the live value for key. An expired or missing entry reports
// ok=false.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, restarting its lifetime.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{value: value, expires: time.Now().Add(c.ttl)}
}

// Invalidate drops the entry for key, if any.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Purge drops every entry.
func (c *TTLCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
}

// Sweep removes expired entries and returns how many were dropped.
func (c *TTLCache[K, V]) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	var dropped int
	for key, e := range c.data {
		if now.After(e.expires) {
			delete(c.data, key)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of stored entries, including any not yet swept.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
