package compiler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache holds compiled output keyed by source hash, with LRU eviction by
// entry count and a TTL.
type Cache struct {
	entries    map[string]*cacheEntry
	mutex      sync.Mutex
	maxEntries int
	ttl        time.Duration
	// LRU list with sentinel head and tail
	head *cacheEntry
	tail *cacheEntry

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key       string
	value     string
	createdAt time.Time
	prev      *cacheEntry
	next      *cacheEntry
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// NewCache creates a cache holding at most maxEntries results.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		head:       &cacheEntry{},
		tail:       &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}

	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		c.unlink(entry)
		delete(c.entries, key)
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}

	c.unlink(entry)
	c.pushFront(entry)
	atomic.AddInt64(&c.hits, 1)
	return entry.value, true
}

// Set stores a value in the cache.
func (c *Cache) Set(key, value string) {
	if c.maxEntries <= 0 {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.value = value
		entry.createdAt = time.Now()
		c.unlink(entry)
		c.pushFront(entry)
		return
	}

	for len(c.entries) >= c.maxEntries {
		oldest := c.tail.prev
		if oldest == c.head {
			break
		}
		c.unlink(oldest)
		delete(c.entries, oldest.key)
		atomic.AddInt64(&c.evictions, 1)
	}

	entry := &cacheEntry{key: key, value: value, createdAt: time.Now()}
	c.entries[key] = entry
	c.pushFront(entry)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns the current counters.
func (c *Cache) Stats() CacheStats {
	c.mutex.Lock()
	n := len(c.entries)
	c.mutex.Unlock()

	return CacheStats{
		Entries:   n,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

func (c *Cache) pushFront(e *cacheEntry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) unlink(e *cacheEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}
