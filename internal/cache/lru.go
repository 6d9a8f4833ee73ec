// Package cache holds recently computed forecasts.
package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTL is a size-bounded LRU whose entries also expire after a fixed duration.
// A zero ttl disables expiry.
type TTL[K comparable, V any] struct {
	lru *lru.Cache[K, entry[V]]
	ttl time.Duration
	now func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func NewTTL[K comparable, V any](size int, ttl time.Duration) (*TTL[K, V], error) {
	c, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTL[K, V]{lru: c, ttl: ttl, now: time.Now}, nil
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	e, ok := c.lru.Get(key)
	if ok && c.ttl > 0 && c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.lru.Add(key, entry[V]{value: value, expiresAt: exp})
}

// Purge drops every entry. Called when the model changes.
func (c *TTL[K, V]) Purge() { c.lru.Purge() }

func (c *TTL[K, V]) Len() int { return c.lru.Len() }

type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

func (c *TTL[K, V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.lru.Len()}
}
