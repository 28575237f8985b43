package cache

import (
	"sync"
	"time"
)

// Value caches a single value of type V, such as a listing which is
// refreshed as a whole.
type Value[V any] struct {
	e   entry[V]
	ttl time.Duration
	mu  sync.Mutex
}

// ValueOption is a functional option argument to NewValue().
type ValueOption[V any] func(*Value[V])

// ValueWithTTL sets the Value time-to-live to ttl.
func ValueWithTTL[V any](ttl time.Duration) ValueOption[V] {
	return func(c *Value[V]) {
		c.ttl = ttl
	}
}

// NewValue returns an empty Value with a default TTL of 1 minute.
func NewValue[V any](options ...ValueOption[V]) *Value[V] {
	c := Value[V]{ttl: defaultTTL}
	for _, option := range options {
		option(&c)
	}
	return &c
}

// Set stores value until now+TTL.
func (c *Value[V]) Set(value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.e = entry[V]{value: value, expiry: time.Now().Add(c.ttl)}
}

// Get returns the stored value. The second return value is false if nothing
// was stored or the value has expired.
func (c *Value[V]) Get() (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.e.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return c.e.value, true
}

// Invalidate drops the stored value.
func (c *Value[V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.e = entry[V]{}
}
