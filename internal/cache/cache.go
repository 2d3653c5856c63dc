// Package cache provides the TTL store that sits in front of theme records and rendered CSS.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL applies when Config.TTL is zero.
const DefaultTTL = 5 * time.Minute

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds cache configuration.
type Config struct {
	Enabled bool
	TTL     time.Duration

	// Clock for testing (nil uses real time)
	Clock Clock
}

type entry struct {
	payload  any
	storedAt time.Time
}

// Cache is a mutex-guarded TTL map. A disabled cache misses every Get and ignores writes.
//
// Every key carries a generation that Invalidate bumps. Loaders capture the generation
// before reading storage and publish with SetIfCurrent, so a load that raced a write is
// dropped instead of repopulating the cache with stale data.
type Cache struct {
	enabled bool
	ttl     time.Duration
	clock   Clock

	mu          sync.Mutex
	entries     map[string]entry
	generations map[string]uint64
}

// New creates a cache with the given config.
func New(cfg Config) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Cache{
		enabled:     cfg.Enabled,
		ttl:         ttl,
		clock:       clock,
		entries:     make(map[string]entry),
		generations: make(map[string]uint64),
	}
}

// Enabled reports whether the cache stores anything at all.
func (c *Cache) Enabled() bool { return c.enabled }

// TTL returns the uniform entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the payload stored under key. Expired entries are evicted and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key, stamped with the current time.
func (c *Cache) Set(key string, payload any) {
	if !c.enabled {
		return
	}
	now := c.clock.Now()

	c.mu.Lock()
	c.entries[key] = entry{payload: payload, storedAt: now}
	c.mu.Unlock()
}

// Generation returns the current generation of key, for use with SetIfCurrent.
func (c *Cache) Generation(key string) uint64 {
	if !c.enabled {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// SetIfCurrent stores payload only if key has not been invalidated since generation was read.
// It reports whether the payload was stored.
func (c *Cache) SetIfCurrent(key string, payload any, generation uint64) bool {
	if !c.enabled {
		return false
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[key] != generation {
		return false
	}
	c.entries[key] = entry{payload: payload, storedAt: now}
	return true
}

// Invalidate evicts every given key in one critical section.
func (c *Cache) Invalidate(keys ...string) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
		c.generations[key]++
	}
}

// Prune evicts every expired entry and returns how many were removed.
func (c *Cache) Prune() int {
	if !c.enabled {
		return 0
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
