package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

func TestAcquireRelease(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "BTC/USDT|a|b", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "BTC/USDT|a|b", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	// A different tuple is independent.
	unlock2, err := lm.Acquire(ctx, "BTC/USDT|b|a", time.Minute)
	require.NoError(t, err)
	unlock2()

	unlock()
	unlock() // double release is a no-op

	_, err = lm.Acquire(ctx, "BTC/USDT|a|b", time.Minute)
	require.NoError(t, err)
}

func TestAcquireExpiredLock(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	_, err := lm.Acquire(ctx, "k", time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	unlock, err := lm.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	unlock()
}
