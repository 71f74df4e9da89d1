// Package cache provides the keyed asset store shared between the renderer and the code that draws with it.
package cache

import (
	"sort"
	"sync"
)

// Cache is a concurrency-safe store of named assets.
// The renderer registers its built-in shaders and blend states here; scene code looks them up by key.
type Cache interface {
	// Set stores a value under the given key, replacing any existing value.
	//
	// Parameters:
	//   - key: the unique name of the asset
	//   - value: the asset to store
	Set(key string, value any)

	// Get retrieves the value stored under the given key.
	//
	// Parameters:
	//   - key: the unique name of the asset
	//
	// Returns:
	//   - any: the stored value, or nil if not found
	//   - bool: true if the key exists
	Get(key string) (any, bool)

	// Delete removes the value stored under the given key. Missing keys are ignored.
	//
	// Parameters:
	//   - key: the unique name of the asset
	Delete(key string)

	// Keys returns every stored key in ascending order.
	//
	// Returns:
	//   - []string: the sorted keys
	Keys() []string

	// Clear removes every stored value.
	Clear()
}

type cache struct {
	mu    sync.RWMutex
	items map[string]any
}

var _ Cache = &cache{}

// NewCache creates an empty Cache.
//
// Returns:
//   - Cache: the new cache
func NewCache() Cache {
	return &cache{items: make(map[string]any)}
}

func (c *cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
}

// Lookup retrieves a value of type T from the cache.
// It returns the zero value and false when the key is missing or holds a different type.
//
// Parameters:
//   - c: the cache to read from
//   - key: the unique name of the asset
//
// Returns:
//   - T: the typed value
//   - bool: true if the key exists and holds a T
func Lookup[T any](c Cache, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
