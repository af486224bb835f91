package app

import (
	"sync"
	"time"

	"github.com/cimillas/monei-reconciler/internal/clock"
)

// Cache maps a key to a value with an expiry.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, v V, ttl time.Duration)
	Delete(key string)
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an in-memory Cache driven by an injected clock.
type TTLCache[V any] struct {
	clock clock.Clock

	mu    sync.Mutex
	items map[string]cacheEntry[V]
}

func NewTTLCache[V any](clk clock.Clock) *TTLCache[V] {
	return &TTLCache[V]{
		clock: clk,
		items: make(map[string]cacheEntry[V]),
	}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expiresAt.After(now) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) Set(key string, v V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = cacheEntry[V]{value: v, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len counts entries, expired ones included until they are read.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
