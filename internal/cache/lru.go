package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a thread-safe, size-bounded cache with optional TTL expiration.
//
// The pipeline re-reads the same lam-inf shingle sets many times while
// deriving finite budgets and computing per-version similarities; keeping
// the decoded sets behind a bounded LRU avoids both repeated file parsing
// and unbounded memory growth on large corpora.
type LRU[K comparable, V any] struct {
	cache  *lru.Cache[K, *entry[V]]
	ttl    time.Duration
	mu     sync.RWMutex
	hits   uint64
	misses uint64
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates an LRU cache holding at most size entries. A ttl of 0
// disables expiration.
func New[K comparable, V any](size int, ttl time.Duration) (*LRU[K, V], error) {
	inner, err := lru.New[K, *entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{cache: inner, ttl: ttl}, nil
}

// Get returns the cached value, or the zero value and false when the key
// is absent or expired.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache.Get(key)
	if !ok || (c.ttl > 0 && time.Now().After(e.expiresAt)) {
		c.misses++
		var zero V
		return zero, false
	}

	c.hits++
	return e.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	c.cache.Add(key, &entry[V]{value: value, expiresAt: expiresAt})
}

// Delete removes a key.
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Len returns the number of cached entries, including expired entries not
// yet touched by a Get.
func (c *LRU[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

// Stats reports hit/miss counters for observability.
func (c *LRU[K, V]) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
