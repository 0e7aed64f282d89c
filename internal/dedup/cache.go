package dedup

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProcessedTTL is how long a (tab, url) pair is remembered as processed.
const ProcessedTTL = 5 * time.Second

// ProcessedCache remembers recently handled (tab, url) pairs so the same
// navigation reported twice is only deduplicated once.
type ProcessedCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time // key -> processed at
}

// NewProcessedCache creates a cache with the default TTL and wall clock.
func NewProcessedCache() *ProcessedCache {
	return NewProcessedCacheWithClock(ProcessedTTL, time.Now)
}

// NewProcessedCacheWithClock creates a cache with a custom TTL and clock.
func NewProcessedCacheWithClock(ttl time.Duration, now func() time.Time) *ProcessedCache {
	return &ProcessedCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]time.Time),
	}
}

func cacheKey(tabID int, url string) string {
	return strconv.Itoa(tabID) + "|" + url
}

// Seen reports whether the pair was processed within the TTL and records it
// as processed now if it was not.
func (c *ProcessedCache) Seen(tabID int, url string) bool {
	key := cacheKey(tabID, url)
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if at, ok := c.entries[key]; ok && now.Sub(at) < c.ttl {
		return true
	}
	c.entries[key] = now
	return false
}

// Forget drops every entry for tabID.
func (c *ProcessedCache) Forget(tabID int) {
	prefix := strconv.Itoa(tabID) + "|"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Sweep removes expired entries and returns how many were removed.
func (c *ProcessedCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, at := range c.entries {
		if now.Sub(at) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries.
func (c *ProcessedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
