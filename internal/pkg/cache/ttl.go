// Package cache holds the short-lived in-memory row caches shared by the
// catalog screens.
package cache

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Recorder observes cache lookups. A nil Recorder is allowed.
type Recorder interface {
	CacheLookup(cache string, hit bool)
}

type entry[V any] struct {
	value     V
	timestamp time.Time
}

// TTL is a map whose entries expire a fixed duration after they were written.
// Staleness is decided only by comparing the write timestamp with the clock.
type TTL[K comparable, V any] struct {
	name     string
	ttl      time.Duration
	now      Clock
	recorder Recorder

	mu      sync.RWMutex
	entries map[K]entry[V]
}

func NewTTL[K comparable, V any](name string, ttl time.Duration, now Clock, recorder Recorder) *TTL[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[K, V]{
		name:     name,
		ttl:      ttl,
		now:      now,
		recorder: recorder,
		entries:  make(map[K]entry[V]),
	}
}

// Get returns the value for key when it was written less than TTL ago.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.timestamp) < c.ttl {
		c.record(true)
		return e.value, true
	}
	c.record(false)
	var zero V
	return zero, false
}

// Set stores value with a fresh timestamp.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, timestamp: c.now()}
	c.mu.Unlock()
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry, expired or not.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Len counts stored entries including expired ones not yet overwritten.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Load errors are returned as is and nothing is cached.
func (c *TTL[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *TTL[K, V]) record(hit bool) {
	if c.recorder != nil {
		c.recorder.CacheLookup(c.name, hit)
	}
}
