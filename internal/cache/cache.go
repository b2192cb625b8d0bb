// Package cache provides a small in-process TTL cache, used by the HTTP
// layer to avoid re-aggregating report data on every partial.
package cache

import (
	"sync"
	"time"
)

// TTLCache is a mutex-guarded cache with per-entry TTL and least
// recently touched eviction. It holds at most one report per user, so
// capacities stay small and eviction scans the table instead of
// maintaining an access list.
type TTLCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration

	// clock orders accesses; the entry with the lowest stamp is the
	// eviction victim.
	clock   uint64
	entries map[string]*cacheEntry[T]
}

type cacheEntry[T any] struct {
	value      T
	expiresAt  time.Time
	lastAccess uint64
}

// New creates a cache holding at most maxSize entries, each valid
// for ttl.
func New[T any](maxSize int, ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry[T]),
	}
}

// Get retrieves a value, expiring it lazily if past its TTL.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}

	c.clock++
	e.lastAccess = c.clock
	return e.value, true
}

// Set stores a value, evicting the least recently touched entry when
// the cache is over capacity.
func (c *TTLCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	c.entries[key] = &cacheEntry[T]{
		value:      value,
		expiresAt:  time.Now().Add(c.ttl),
		lastAccess: c.clock,
	}

	if len(c.entries) > c.maxSize {
		c.evictOldest()
	}
}

// evictOldest drops the entry with the lowest access stamp. Called with
// the lock held on a non-empty table.
func (c *TTLCache[T]) evictOldest() {
	var victim string
	oldest := ^uint64(0)
	for key, e := range c.entries {
		if e.lastAccess < oldest {
			oldest = e.lastAccess
			victim = key
		}
	}
	delete(c.entries, victim)
}

// Delete removes a key.
func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Size returns the current number of entries.
func (c *TTLCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CleanExpired removes all expired entries and returns how many were
// dropped.
func (c *TTLCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
