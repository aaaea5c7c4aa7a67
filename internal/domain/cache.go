package domain

import (
	"context"
	"time"
)

// SignalBus fans detection and execution events out to downstream
// consumers (statistics, notification, dashboards). Producers never block
// on slow consumers; publish failures are logged and dropped.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides the claim-before-execute lock keyed by
// (pair, buyVenue, sellVenue). Acquire returns ErrLockHeld when another
// execution already claimed the key; the returned unlock function is safe
// to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// OrderbookCache holds the latest book snapshot per (venue, pair) for
// presentation-layer consumers. The core only writes to it.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, book OrderBook) error
	GetSnapshot(ctx context.Context, venue string, pair TradingPair) (OrderBook, error)
}

// BlobWriter uploads archive objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
