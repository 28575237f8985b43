// Package cache implements generic, thread-safe, in-memory TTL caches for
// objects fetched from a remote directory.
package cache

import "time"

const defaultTTL = time.Minute

type entry[V any] struct {
	value  V
	expiry time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiry)
}
