package catalog

import (
	"sync"
	"time"
)

// cacheEntry is one cached lookup result.
type cacheEntry struct {
	value        any
	expiresAt    time.Time
	lastAccessed time.Time
}

// Cache is a thread-safe in-memory cache with TTL expiry and LRU
// eviction. It backs the org-name and item-detail lookups: entries are
// invalidated only by expiry, never by write-through, so the TTL is the
// staleness bound.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
}

// NewCache creates a cache with the given TTL and entry bound.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Set stores a value, evicting the least recently used entry when the
// cache is at capacity.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	c.entries[key] = &cacheEntry{
		value:        value,
		expiresAt:    now.Add(c.ttl),
		lastAccessed: now,
	}
}

// Get returns the cached value when present and unexpired. Expired
// entries are removed on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	entry.lastAccessed = now
	return entry.value, true
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// caller must hold the lock.
func (c *Cache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.lastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessed
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
