// Package arcache is the small in-memory TTL cache that sits in front of
// gateway lookups which rarely change (anchors, prices, balances).
package arcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/build"
)

const DefaultSize = 1024

type entry struct {
	value   any
	expires time.Time
}

// Cache is an LRU with per-entry expiry. It is safe for concurrent use; two
// concurrent Sets of the same key simply leave one of the values.
type Cache struct {
	lru *lru.Cache[string, entry]
	ttl time.Duration
	clk clock.Clock
}

type Option func(*Cache)

// WithClock replaces the clock used for expiry.
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) { c.clk = clk }
}

// WithDefaultTTL sets the TTL used by Set when none is given. Zero means
// entries never expire.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func New(size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, xerrors.Errorf("new lru: %w", err)
	}

	c := &Cache{lru: l, clk: build.Clock}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value for ttl; ttl <= 0 never expires.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = c.clk.Now().Add(ttl)
	}
	c.lru.Add(key, e)
}

func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) HasExpired(key string) bool {
	e, ok := c.lru.Peek(key)
	return !ok || c.expired(e)
}

func (c *Cache) Del(key string) {
	c.lru.Remove(key)
}

func (c *Cache) Clear() {
	c.lru.Purge()
}

// Size counts stored entries, including expired ones not yet evicted.
func (c *Cache) Size() int {
	return c.lru.Len()
}

func (c *Cache) expired(e entry) bool {
	return !e.expires.IsZero() && c.clk.Now().After(e.expires)
}

// GetAs is Get with a type assertion; a value of another type is a miss.
func GetAs[T any](c *Cache, key string) (T, bool) {
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
