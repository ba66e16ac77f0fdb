package githubapi

import (
	"sync"
	"time"
)

// DefaultCacheTTL is the freshness threshold for cached responses.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	payload   []byte
	fetchedAt time.Time
}

// ResponseCache is a URL-keyed response cache with a fixed freshness
// threshold. Entries are overwritten on refresh and never evicted otherwise,
// so the cache is bounded only by the set of distinct request URLs issued
// during the client's lifetime.
type ResponseCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewResponseCache creates a response cache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResponseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached payload for url if it is younger than the freshness
// threshold.
func (c *ResponseCache) Get(url string, now time.Time) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}

	payload := make([]byte, len(entry.payload))
	copy(payload, entry.payload)
	return payload, true
}

// Put stores a payload for url, replacing any prior entry.
func (c *ResponseCache) Put(url string, payload []byte, now time.Time) {
	if c == nil {
		return
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = cacheEntry{
		payload:   stored,
		fetchedAt: now,
	}
}

// Len reports the number of cached entries.
func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
