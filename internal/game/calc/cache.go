package calc

import (
	"container/list"
)

// DefaultCacheCapacity is the cache size used when a job does not configure
// its own.
const DefaultCacheCapacity = 512

// Cache memoizes Calculator results with strict least-recently-used
// eviction. A hit refreshes recency; a miss always computes and stores
// unconditionally. Caches are scoped to a single job and must never be
// shared across runs: the key covers only the fields the calculator reads,
// not the surrounding job state.
//
// Cache is not safe for concurrent use; each job owns exactly one.
type Cache struct {
	calc     Calculator
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element

	hits, misses int
}

type cacheEntry struct {
	key    string
	result *Result
}

// NewCache wraps calc with an LRU cache of the given capacity.
//
// Precondition: calc must be non-nil; capacity <= 0 uses DefaultCacheCapacity.
func NewCache(calc Calculator, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		calc:     calc,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Compute returns the cached result for the request, computing and storing
// it on a miss.
//
// Postcondition: On success the result is present in the cache and marked
// most recently used; on overflow exactly one least-recently-used entry has
// been evicted.
func (c *Cache) Compute(req Request) (*Result, error) {
	key := Key(req)

	if el, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).result, nil
	}

	c.misses++
	res, err := c.calc.Compute(req)
	if err != nil {
		return nil, err
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, result: res})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return res, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.order.Len() }

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int) { return c.hits, c.misses }
