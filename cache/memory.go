// Package cache provides the two cache tiers used by the engine: a bounded
// in-process LRU with per-entry expiry, and a shared Redis tier for cached
// nodes and operation results.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is a bounded in-process cache with per-entry TTL. It wraps an
// expiring LRU and is safe for concurrent use.
type Memory[V any] struct {
	lru *lru.LRU[string, V]
}

// NewMemory creates a cache holding at most size entries, each expiring
// after ttl. A ttl of zero disables expiry.
func NewMemory[V any](size int, ttl time.Duration) *Memory[V] {
	return &Memory[V]{
		lru: lru.NewLRU[string, V](size, nil, ttl),
	}
}

// Get returns the cached value and whether it was present and unexpired.
func (m *Memory[V]) Get(key string) (V, bool) {
	return m.lru.Get(key)
}

// Set stores a value under the key.
func (m *Memory[V]) Set(key string, value V) {
	m.lru.Add(key, value)
}

// Delete removes the key if present.
func (m *Memory[V]) Delete(key string) {
	m.lru.Remove(key)
}

// Purge removes every entry.
func (m *Memory[V]) Purge() {
	m.lru.Purge()
}

// Len returns the number of live entries.
func (m *Memory[V]) Len() int {
	return m.lru.Len()
}
