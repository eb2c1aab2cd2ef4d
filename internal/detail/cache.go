package detail

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ShareDesk/internal/model"
)

const (
	// DefaultTTL is how long a cached record counts as fresh.
	DefaultTTL = 60 * time.Second
	// DefaultCacheSize bounds the number of companies kept.
	DefaultCacheSize = 512
)

type entry struct {
	record   model.DetailRecord
	storedAt time.Time
}

// Cache holds composed detail records by company name. Expired entries are
// still returned, marked stale, so a failed refetch can fall back to them.
// Capacity is bounded; the least recently used company is evicted first.
type Cache struct {
	entries *lru.Cache[string, entry]
	ttl     time.Duration
	now     func() time.Time
}

type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache of at most size records.
func NewCache(size int, ttl time.Duration, opts ...CacheOption) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}
	c := &Cache{entries: l, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key is the cache key for a company name.
func Key(name string) string { return "company-" + name }

// Get returns the record for name and whether it is younger than the TTL.
func (c *Cache) Get(name string) (rec model.DetailRecord, fresh bool, ok bool) {
	e, ok := c.entries.Get(Key(name))
	if !ok {
		return model.DetailRecord{}, false, false
	}
	return e.record, c.now().Sub(e.storedAt) < c.ttl, true
}

// Put stores rec with the current time.
func (c *Cache) Put(name string, rec model.DetailRecord) {
	c.entries.Add(Key(name), entry{record: rec, storedAt: c.now()})
}

func (c *Cache) Len() int { return c.entries.Len() }

func (c *Cache) TTL() time.Duration { return c.ttl }

// PruneOlderThan drops records stored more than age ago and returns how
// many were removed.
func (c *Cache) PruneOlderThan(age time.Duration) int {
	cutoff := c.now().Add(-age)
	removed := 0
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if ok && e.storedAt.Before(cutoff) {
			c.entries.Remove(k)
			removed++
		}
	}
	return removed
}
