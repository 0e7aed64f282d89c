package dedup

import (
	"sync"
	"time"

	"github.com/lotas/tabgruppen/internal/urlutil"
)

// SkipWindow is how long a URL marked by undo bypasses deduplication.
const SkipWindow = 10 * time.Second

// Guard is a short-lived allow-list of URLs that must not be deduplicated,
// used when a deduplicated tab is reopened through undo.
type Guard struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]time.Time // normalized URL -> expiry
}

// NewGuard creates a Guard with the default window and wall clock.
func NewGuard() *Guard {
	return NewGuardWithClock(SkipWindow, time.Now)
}

// NewGuardWithClock creates a Guard with a custom window and clock.
func NewGuardWithClock(window time.Duration, now func() time.Time) *Guard {
	return &Guard{
		window:  window,
		now:     now,
		entries: make(map[string]time.Time),
	}
}

// Mark exempts url from deduplication for the guard window, replacing any earlier mark.
func (g *Guard) Mark(url string) {
	key := urlutil.NormalizeForGuard(url)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = g.now().Add(g.window)
}

// ShouldSkip reports whether url is currently exempt. Expired entries are
// removed as part of the lookup.
func (g *Guard) ShouldSkip(url string) bool {
	key := urlutil.NormalizeForGuard(url)
	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.entries[key]
	if !ok {
		return false
	}
	if !g.now().Before(expiry) {
		delete(g.entries, key)
		return false
	}
	return true
}

// Len returns the number of stored entries, expired or not.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
