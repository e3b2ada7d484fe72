package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL maps keys to values that expire a fixed duration after they were set.
// Expiry is checked on access; reads never return an entry at or past its
// expiry. A maxSize of zero leaves the map unbounded.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]ttlEntry[V]
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func NewTTL[K comparable, V any](ttl time.Duration, maxSize int, now func() time.Time) *TTL[K, V] {
	if now == nil {
		now = time.Now
	}

	return &TTL[K, V]{
		entries: make(map[K]ttlEntry[V]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
	}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		var zero V
		return zero, false
	}

	return entry.value, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.SetUntil(key, value, c.now().Add(c.ttl))
}

// SetUntil stores a value with an explicit expiry, capped at the regular TTL.
func (c *TTL[K, V]) SetUntil(key K, value V, expiresAt time.Time) {
	if limit := c.now().Add(c.ttl); expiresAt.After(limit) {
		expiresAt = limit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = ttlEntry[V]{value: value, expiresAt: expiresAt}
}

// Add stores the value unless a live entry exists, in which case the live
// value is returned with false.
func (c *TTL[K, V]) Add(key K, value V) (V, bool) {
	return c.AddUntil(key, value, c.now().Add(c.ttl))
}

// AddUntil is Add with an explicit expiry, capped at the regular TTL.
func (c *TTL[K, V]) AddUntil(key K, value V, expiresAt time.Time) (V, bool) {
	now := c.now()
	if limit := now.Add(c.ttl); expiresAt.After(limit) {
		expiresAt = limit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, exists := c.entries[key]
	if exists && now.Before(cur.expiresAt) {
		return cur.value, false
	}

	if !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = ttlEntry[V]{value: value, expiresAt: expiresAt}
	return value, true
}

// Update replaces the value of a live entry without touching its expiry. It
// reports false, leaving the map unchanged, when the key is absent or expired.
func (c *TTL[K, V]) Update(key K, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return false
	}

	entry.value = fn(entry.value)
	c.entries[key] = entry
	return true
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops expired entries, or the one closest to expiry if none are.
func (c *TTL[K, V]) evictLocked() {
	now := c.now()

	var oldestKey K
	var oldestTime time.Time
	found := false

	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			continue
		}
		if !found || entry.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.expiresAt
			found = true
		}
	}

	if len(c.entries) >= c.maxSize && found {
		delete(c.entries, oldestKey)
	}
}
