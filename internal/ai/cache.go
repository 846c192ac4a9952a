package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheEntry is one cached response.
type CacheEntry[T any] struct {
	Value     T
	CreatedAt time.Time
	ExpiresAt time.Time
	Hits      int
}

// Cache is a bounded LRU of responses with per-entry TTL. Expired entries
// are dropped on read and by Sweep; an expired entry is never returned.
type Cache[T any] struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *CacheEntry[T]]
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a cache holding at most size entries for ttl each.
func NewCache[T any](size int, ttl time.Duration) *Cache[T] {
	if size <= 0 {
		size = 1
	}
	l, err := lru.New[string, *CacheEntry[T]](size)
	if err != nil {
		// Only returned for non-positive sizes, excluded above.
		panic(err)
	}
	return &Cache[T]{lru: l, ttl: ttl, now: time.Now}
}

// Get returns the cached value if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	entry.Hits++
	return entry.Value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.lru.Add(key, &CacheEntry[T]{Value: value, CreatedAt: now, ExpiresAt: now.Add(c.ttl)})
}

// Entry returns a copy of the entry metadata without counting a hit.
func (c *Cache[T]) Entry(key string) (CacheEntry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Peek(key)
	if !ok || !c.now().Before(entry.ExpiresAt) {
		return CacheEntry[T]{}, false
	}
	return *entry, true
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if ok && !now.Before(entry.ExpiresAt) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	return c.lru.Len()
}

// Purge empties the cache.
func (c *Cache[T]) Purge() {
	c.lru.Purge()
}

// CacheKey derives the cache key for a call from its method, prompt and options.
func CacheKey(method, prompt string, opts any) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	if opts != nil {
		b, err := json.Marshal(opts)
		if err == nil {
			h.Write(b)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
