package checkout

import (
	"sync"
	"time"
)

type guardEntry struct {
	orderID string
	expires time.Time
}

// Guard allows one in-flight checkout per client key. A second Acquire while an entry is live is refused.
// Entries abandoned without a Release are dropped by the sweep Acquire runs at most once per ttl.
type Guard struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	entries   map[string]guardEntry
	lastSweep time.Time
}

func NewGuard(ttl time.Duration) *Guard {
	return &Guard{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]guardEntry),
	}
}

func (g *Guard) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastSweep) >= g.ttl {
		g.sweep(now)
	}
	if e, ok := g.entries[key]; ok && now.Before(e.expires) {
		return false
	}
	g.entries[key] = guardEntry{expires: now.Add(g.ttl)}
	return true
}

// Bind records the correlation id owned by key so a later Release can report it.
func (g *Guard) Bind(key, orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.entries[key]; ok {
		e.orderID = orderID
		g.entries[key] = e
	}
}

// Release clears key and returns the correlation id it held, if any.
func (g *Guard) Release(key string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[key]
	if !ok {
		return ""
	}
	delete(g.entries, key)
	return e.orderID
}

func (g *Guard) sweep(now time.Time) {
	for key, e := range g.entries {
		if !now.Before(e.expires) {
			delete(g.entries, key)
		}
	}
	g.lastSweep = now
}
