// Package feed streams venue order books over WebSocket into an in-memory
// snapshot table that serves as the scanner's market data source. One feed
// runs per venue; the table is shared.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// defaultMaxAge is how old a snapshot may be before reads treat the market
// as having no data. Stale books must never reach detection.
const defaultMaxAge = 10 * time.Second

// SnapshotTable holds the latest order book per (venue, pair) and
// implements domain.MarketDataSource. It is written by the venue feeds and
// read by the scanner and executor.
type SnapshotTable struct {
	maxAge time.Duration

	mu    sync.RWMutex
	books map[string]domain.OrderBook
}

// NewSnapshotTable creates a SnapshotTable. maxAge <= 0 selects the
// default staleness bound.
func NewSnapshotTable(maxAge time.Duration) *SnapshotTable {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &SnapshotTable{
		maxAge: maxAge,
		books:  make(map[string]domain.OrderBook),
	}
}

func bookKey(venue string, pair domain.TradingPair) string {
	return venue + "|" + pair.String()
}

// Put stores the latest book for its (venue, pair).
func (t *SnapshotTable) Put(book domain.OrderBook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.books[bookKey(book.Venue, book.Pair)] = book
}

// GetOrderBook returns the latest snapshot. A missing or stale snapshot is
// a transient condition: the caller skips the market and retries next
// cycle.
func (t *SnapshotTable) GetOrderBook(_ context.Context, venue string, pair domain.TradingPair) (domain.OrderBook, error) {
	t.mu.RLock()
	book, ok := t.books[bookKey(venue, pair)]
	t.mu.RUnlock()

	if !ok {
		return domain.OrderBook{}, fmt.Errorf("%w: no book for %s %s", domain.ErrTransientData, venue, pair)
	}
	if age := time.Since(book.Timestamp); age > t.maxAge {
		return domain.OrderBook{}, fmt.Errorf("%w: book for %s %s is %s old", domain.ErrTransientData, venue, pair, age.Round(time.Millisecond))
	}
	return book, nil
}

var _ domain.MarketDataSource = (*SnapshotTable)(nil)
