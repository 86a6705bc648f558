// Package capability tracks which optional store capabilities are known to
// be absent in the current process, so the search engine can skip tiers that
// would fail with a round trip anyway.
package capability

import "sync"

// Name identifies an optional store capability.
type Name string

// Optional capabilities probed at runtime.
const (
	HybridSearch           Name = "hybrid_search"
	HybridSearchByCategory Name = "hybrid_search_by_category"
	FullTextSearch         Name = "full_text_search"
	KeywordSearch          Name = "keyword_search"
)

// Cache is an injectable, process-wide record of absent capabilities plus
// per-capability attempt counters. Flags are monotonic: once a capability is
// marked missing it stays missing for the lifetime of the cache. Races are
// harmless: at worst one extra failed call before the flag lands.
type Cache struct {
	mu       sync.RWMutex
	missing  map[Name]struct{}
	attempts map[Name]int64
}

// NewCache creates an empty capability cache.
func NewCache() *Cache {
	return &Cache{
		missing:  make(map[Name]struct{}),
		attempts: make(map[Name]int64),
	}
}

// MarkMissing records that the store reported the capability as not found.
func (c *Cache) MarkMissing(n Name) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missing[n] = struct{}{}
}

// Missing reports whether the capability is known to be absent.
func (c *Cache) Missing(n Name) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.missing[n]
	return ok
}

// RecordAttempt increments the attempt counter for a capability.
func (c *Cache) RecordAttempt(n Name) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[n]++
}

// Attempts returns how many times the capability has been tried.
func (c *Cache) Attempts(n Name) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts[n]
}

// Reset clears all flags and counters. Intended for tests.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missing = make(map[Name]struct{})
	c.attempts = make(map[Name]int64)
}
