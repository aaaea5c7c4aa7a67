// Package memory provides in-process implementations of the cache
// interfaces for single-instance deployments and paper trading, where a
// Redis round-trip buys nothing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// LockManager implements domain.LockManager with an in-process table of
// held keys. TTL expiry guards against leaked locks when a holder never
// calls unlock.
type LockManager struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]time.Time)}
}

// Acquire claims key for ttl. It returns domain.ErrLockHeld when the key is
// already claimed and unexpired. The returned unlock function is safe to
// call more than once.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	if expiry, ok := lm.held[key]; ok && now.Before(expiry) {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = now.Add(ttl)

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.held, key)
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
