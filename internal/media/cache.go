// Package media provides the in-memory cache for synthesized audio assets.
//
// Assets are ephemeral: each is stamped at insertion and retrievable only
// while younger than the TTL. Expired entries are removed by a lazy sweep run
// on every access, so no background timer is needed.
package media

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a stored asset remains retrievable.
const DefaultTTL = 600 * time.Second

// asset is one cached audio blob.
type asset struct {
	payload   []byte
	createdAt time.Time
}

// Cache stores synthesized audio blobs keyed by opaque id with time-based
// eviction. Safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	assets map[string]asset
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default asset lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock injects a clock, used by tests to advance time without waiting.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache with the default TTL and wall clock.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		assets: make(map[string]asset),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores payload under a fresh unique id and returns the id. It never
// fails.
func (c *Cache) Put(payload []byte) string {
	id := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[id] = asset{payload: payload, createdAt: c.now()}
	slog.Debug("Cache.Put: stored audio asset", "id", id, "bytes", len(payload))
	return id
}

// Get sweeps expired entries, then looks up id. The boolean is false both for
// ids that never existed and for ids that expired; callers cannot tell the
// two apart.
func (c *Cache) Get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	a, ok := c.assets[id]
	if !ok {
		return nil, false
	}
	return a.payload, true
}

// Len sweeps expired entries and reports how many assets remain.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	return len(c.assets)
}

// sweepLocked removes every entry older than the TTL. Callers must hold mu.
func (c *Cache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for id, a := range c.assets {
		if a.createdAt.Before(cutoff) {
			delete(c.assets, id)
			slog.Debug("Cache.sweep: expired audio asset", "id", id)
		}
	}
}
