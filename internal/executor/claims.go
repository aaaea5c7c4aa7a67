package executor

import (
	"sync"
	"time"
)

// Claims prevents the same opportunity from being handed to the engine more
// than once within a time-to-live window, e.g. when a scan cycle re-emits an
// opportunity that is already in flight. It is safe for concurrent use.
type Claims struct {
	seen map[string]time.Time // opportunity ID -> claim time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewClaims creates a Claims registry that treats an ID as already claimed
// if it was claimed within the given ttl.
func NewClaims(ttl time.Duration) *Claims {
	return &Claims{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Claim records the opportunity ID and returns true if this caller is the
// first to claim it within the TTL window.
func (c *Claims) Claim(oppID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if claimed, ok := c.seen[oppID]; ok && now.Sub(claimed) < c.ttl {
		return false
	}
	c.seen[oppID] = now
	return true
}

// Cleanup removes entries older than the TTL. Call periodically to prevent
// unbounded memory growth.
func (c *Claims) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, ts := range c.seen {
		if now.Sub(ts) >= c.ttl {
			delete(c.seen, id)
		}
	}
}
