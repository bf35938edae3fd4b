// Package datasource owns the process-wide MongoDB clients.
//
// Clients are expensive: each one holds a connection pool and background
// monitors. The Cache guarantees that at most one client is built per key,
// even when many goroutines ask for the same key at once, while callers of
// already-built keys never contend on a lock.
//
// # Usage Example
//
//	mgr := datasource.NewManager()
//
//	cfg, err := opts.ResolveClient("primary")
//	if err != nil {
//	    return err
//	}
//	client, err := mgr.Client(ctx, cfg)
package datasource

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is a concurrent memoizing factory keyed by string.
//
// A successful construction is stored forever and never rebuilt. A failed
// construction is not stored: the error reaches every caller waiting on that
// flight and the next call tries again.
type Cache[T any] struct {
	entries sync.Map
	group   singleflight.Group
}

// NewCache creates an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{}
}

// Get returns the value stored under key, if any.
func (c *Cache[T]) Get(key string) (T, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// GetOrCreate returns the value for key, calling create at most once per key
// across concurrent callers.
func (c *Cache[T]) GetOrCreate(key string, create func() (T, error)) (T, error) {
	v, _, err := c.getOrCreate(key, create)
	return v, err
}

// getOrCreate also reports whether the value was already stored when the
// call arrived. Callers that wait on another caller's construction get false.
func (c *Cache[T]) getOrCreate(key string, create func() (T, error)) (T, bool, error) {
	if v, ok := c.entries.Load(key); ok {
		return v.(T), true, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A previous flight may have stored the value after our Load above.
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}

		v, err := create()
		if err != nil {
			return nil, err
		}
		c.entries.Store(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	v, _ := res.(T)
	return v, false, nil
}

// Len returns the number of stored values.
func (c *Cache[T]) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Keys returns the stored keys in sorted order.
func (c *Cache[T]) Keys() []string {
	var keys []string
	c.entries.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the stored values.
func (c *Cache[T]) Snapshot() map[string]T {
	out := make(map[string]T)
	c.entries.Range(func(k, v any) bool {
		out[k.(string)] = v.(T)
		return true
	})
	return out
}
