package cache

import (
	"sync"
	"time"
)

// Map caches values of type V by key K. Each key expires independently.
type Map[K comparable, V any] struct {
	data map[K]entry[V]
	ttl  time.Duration
	mu   sync.Mutex
}

// MapOption is a functional option argument to NewMap().
type MapOption[K comparable, V any] func(*Map[K, V])

// MapWithTTL sets the Map time-to-live to ttl.
func MapWithTTL[K comparable, V any](ttl time.Duration) MapOption[K, V] {
	return func(c *Map[K, V]) {
		c.ttl = ttl
	}
}

// NewMap returns an empty Map with a default TTL of 1 minute.
func NewMap[K comparable, V any](options ...MapOption[K, V]) *Map[K, V] {
	c := Map[K, V]{
		data: map[K]entry[V]{},
		ttl:  defaultTTL,
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

// Set stores value under key until now+TTL.
func (c *Map[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{value: value, expiry: time.Now().Add(c.ttl)}
}

// Get returns the value stored under key. The second return value is false
// if the key is missing or has expired.
func (c *Map[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(time.Now()) {
		delete(c.data, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete drops the value stored under key.
func (c *Map[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of unexpired entries, dropping expired ones.
func (c *Map[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.data {
		if e.expired(now) {
			delete(c.data, k)
		}
	}
	return len(c.data)
}
