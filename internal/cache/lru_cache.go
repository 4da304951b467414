// Package cache provides the block cache object a block-based table factory
// is configured with.
//
// Building options only sizes the cache; the engine that consumes the options
// fills it. Capacity is the configured block-cache-size in bytes.
//
// Reference: RocksDB v10.7.5 cache/lru_cache.h
package cache

import (
	"container/list"
	"sync"
)

// CacheKey uniquely identifies a cached block.
type CacheKey struct {
	FileNumber  uint64
	BlockOffset uint64
}

type lruEntry struct {
	key    CacheKey
	value  []byte
	charge uint64
}

// LRUCache is a thread-safe LRU cache bounded by total charge.
type LRUCache struct {
	mu       sync.Mutex
	capacity uint64
	usage    uint64
	table    map[CacheKey]*list.Element
	lru      list.List
}

// NewLRUCache creates a new LRU cache with the given capacity in bytes.
func NewLRUCache(capacity uint64) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		table:    make(map[CacheKey]*list.Element),
	}
}

// Insert adds or replaces a block, evicting least recently used blocks until
// it fits. A block larger than the whole capacity is not cached.
func (c *LRUCache) Insert(key CacheKey, value []byte, charge uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[key]; ok {
		c.remove(elem)
	}
	if charge > c.capacity {
		return false
	}
	for c.usage+charge > c.capacity {
		c.remove(c.lru.Back())
	}
	c.table[key] = c.lru.PushFront(&lruEntry{key: key, value: value, charge: charge})
	c.usage += charge
	return true
}

// Lookup returns the cached block and marks it recently used.
func (c *LRUCache) Lookup(key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.table[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*lruEntry).value, true
}

// SetCapacity changes the capacity, evicting as needed.
func (c *LRUCache) SetCapacity(capacity uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = capacity
	for c.usage > c.capacity {
		c.remove(c.lru.Back())
	}
}

// Capacity returns the maximum total charge.
func (c *LRUCache) Capacity() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Usage returns the current total charge.
func (c *LRUCache) Usage() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Len returns the number of cached blocks.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// remove must be called with mu held.
func (c *LRUCache) remove(elem *list.Element) {
	e := c.lru.Remove(elem).(*lruEntry)
	delete(c.table, e.key)
	c.usage -= e.charge
}
