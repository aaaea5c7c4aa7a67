package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// snapshotTTL bounds how long a stale book snapshot survives when the
// scanner stops writing for a market.
const snapshotTTL = 30 * time.Second

// OrderbookCache implements domain.OrderbookCache by storing the latest
// JSON-encoded book per (venue, pair) key. Dashboards and other external
// consumers read these; the bot itself always trades on freshly fetched
// books.
type OrderbookCache struct {
	rdb *redis.Client
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{rdb: c.Underlying()}
}

func snapshotKey(venue string, pair domain.TradingPair) string {
	return "arb:book:" + venue + "|" + pair.String()
}

// SetSnapshot stores the latest book for its (venue, pair).
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, book domain.OrderBook) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s %s: %w", book.Venue, book.Pair, err)
	}
	key := snapshotKey(book.Venue, book.Pair)
	if err := oc.rdb.Set(ctx, key, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", key, err)
	}
	return nil
}

// GetSnapshot returns the latest stored book, or domain.ErrNotFound when no
// snapshot exists or it expired.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, venue string, pair domain.TradingPair) (domain.OrderBook, error) {
	key := snapshotKey(venue, pair)
	data, err := oc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderBook{}, domain.ErrNotFound
		}
		return domain.OrderBook{}, fmt.Errorf("redis: get book %s: %w", key, err)
	}
	var book domain.OrderBook
	if err := json.Unmarshal(data, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: unmarshal book %s: %w", key, err)
	}
	return book, nil
}

var _ domain.OrderbookCache = (*OrderbookCache)(nil)
