package retry

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/jzx17/retrykit/pkg/types"
)

// DefaultCacheCapacity bounds context caches when no capacity is given
const DefaultCacheCapacity = 4096

// ContextCache correlates stateful episodes across separate invocations by
// caller key. Capacity is a hard limit: a Put on a full cache fails rather
// than evicting, because a still-open key's bookkeeping is
// correctness-critical, not advisory.
type ContextCache interface {
	// Get returns the cached context for key
	Get(key interface{}) (Context, bool)

	// Put caches the context for key. Returns ErrCacheCapacityExceeded
	// when the cache is full and key is not already present.
	Put(key interface{}, rc Context) error

	// Remove evicts the context for key
	Remove(key interface{})

	// Contains reports whether key has a cached context
	Contains(key interface{}) bool
}

// MapCache is a mutex-guarded in-memory cache
type MapCache struct {
	mu       sync.RWMutex
	entries  map[interface{}]Context
	capacity int
}

// NewMapCache creates a map cache with the default capacity
func NewMapCache() *MapCache {
	return NewMapCacheWithCapacity(DefaultCacheCapacity)
}

// NewMapCacheWithCapacity creates a map cache bounded at capacity entries
func NewMapCacheWithCapacity(capacity int) *MapCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &MapCache{
		entries:  make(map[interface{}]Context),
		capacity: capacity,
	}
}

// Get returns the cached context for key
func (c *MapCache) Get(key interface{}) (Context, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rc, ok := c.entries[key]
	return rc, ok
}

// Put caches the context for key, failing hard at capacity
func (c *MapCache) Put(key interface{}, rc Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		return types.ErrCacheCapacityExceeded
	}
	c.entries[key] = rc
	return nil
}

// Remove evicts the context for key
func (c *MapCache) Remove(key interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Contains reports whether key has a cached context
func (c *MapCache) Contains(key interface{}) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// LRUCache keeps entries in recency order on a hashicorp/golang-lru backing
// store. Recency only orders diagnostics and Purge traversal; the capacity
// contract is the same hard failure as MapCache, entries are never evicted
// behind the caller's back.
type LRUCache struct {
	mu       sync.Mutex
	backing  *lru.Cache
	capacity int
}

// NewLRUCache creates a recency-ordered cache bounded at capacity entries
func NewLRUCache(capacity int) (*LRUCache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	backing, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &LRUCache{backing: backing, capacity: capacity}, nil
}

// Get returns the cached context for key
func (c *LRUCache) Get(key interface{}) (Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.backing.Get(key)
	if !ok {
		return nil, false
	}
	rc, ok := v.(Context)
	return rc, ok
}

// Put caches the context for key, failing hard at capacity
func (c *LRUCache) Put(key interface{}, rc Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.backing.Contains(key) && c.backing.Len() >= c.capacity {
		return types.ErrCacheCapacityExceeded
	}
	c.backing.Add(key, rc)
	return nil
}

// Remove evicts the context for key
func (c *LRUCache) Remove(key interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backing.Remove(key)
}

// Contains reports whether key has a cached context
func (c *LRUCache) Contains(key interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Contains(key)
}

// SerializedCache stores each context as gob bytes, exercising the same
// round trip a cross-process store would. Only BaseContext episodes are
// serializable; policies with richer context types need MapCache.
type SerializedCache struct {
	mu       sync.RWMutex
	entries  map[interface{}][]byte
	capacity int
}

// NewSerializedCache creates a serialized cache with the default capacity
func NewSerializedCache() *SerializedCache {
	return NewSerializedCacheWithCapacity(DefaultCacheCapacity)
}

// NewSerializedCacheWithCapacity creates a serialized cache bounded at
// capacity entries
func NewSerializedCacheWithCapacity(capacity int) *SerializedCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &SerializedCache{
		entries:  make(map[interface{}][]byte),
		capacity: capacity,
	}
}

// Get decodes and returns the cached context for key
func (c *SerializedCache) Get(key interface{}) (Context, bool) {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	rc := NewBaseContext(nil)
	if err := rc.UnmarshalBinary(data); err != nil {
		return nil, false
	}
	return rc, true
}

// Put encodes and caches the context for key, failing hard at capacity
func (c *SerializedCache) Put(key interface{}, rc Context) error {
	base, ok := rc.(*BaseContext)
	if !ok {
		return types.NewRetryError("cache.put", types.ErrCacheInconsistency).
			WithContext("reason", "context is not serializable")
	}
	data, err := base.MarshalBinary()
	if err != nil {
		return types.NewRetryError("cache.put", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		return types.ErrCacheCapacityExceeded
	}
	c.entries[key] = data
	return nil
}

// Remove evicts the context for key
func (c *SerializedCache) Remove(key interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Contains reports whether key has a cached context
func (c *SerializedCache) Contains(key interface{}) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}
