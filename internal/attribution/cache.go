package attribution

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Cache stores attribution maps per (document, upper bound version).
//
// Every document carries a generation that Invalidate advances. A reader
// takes the generation before reading history and passes it to Set; Set
// drops the map when the generation has moved in between, so a read that
// raced a write can never refill the cache.
type Cache interface {
	Get(ctx context.Context, documentID string, upTo int) (map[string]int, bool, error)
	Generation(ctx context.Context, documentID string) (uint64, error)
	Set(ctx context.Context, documentID string, upTo int, gen uint64, m map[string]int) error
	Invalidate(ctx context.Context, documentID string) error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string, int) (map[string]int, bool, error) {
	return nil, false, nil
}

func (NopCache) Generation(context.Context, string) (uint64, error) { return 0, nil }

func (NopCache) Set(context.Context, string, int, uint64, map[string]int) error { return nil }

func (NopCache) Invalidate(context.Context, string) error { return nil }

type memoryEntry struct {
	m       map[string]int
	expires time.Time
}

// MemoryCache is an in-process Cache with a per-entry TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]map[int]memoryEntry
	gens    map[string]uint64
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl keeps entries
// until invalidated.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]map[int]memoryEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, documentID string, upTo int) (map[string]int, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[documentID][upTo]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		return nil, false, nil
	}
	return maps.Clone(e.m), true, nil
}

func (c *MemoryCache) Generation(_ context.Context, documentID string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[documentID], nil
}

// Set stores m unless the document was invalidated after gen was read.
func (c *MemoryCache) Set(_ context.Context, documentID string, upTo int, gen uint64, m map[string]int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[documentID] != gen {
		return nil
	}
	byBound, ok := c.entries[documentID]
	if !ok {
		byBound = make(map[int]memoryEntry)
		c.entries[documentID] = byBound
	}
	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	byBound[upTo] = memoryEntry{m: maps.Clone(m), expires: expires}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[documentID]++
	delete(c.entries, documentID)
	return nil
}
