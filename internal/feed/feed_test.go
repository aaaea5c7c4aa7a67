package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

var btcUsdt = domain.TradingPair{Base: "BTC", Quote: "USDT"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSnapshotTableRoundTrip(t *testing.T) {
	table := NewSnapshotTable(time.Minute)
	book := domain.OrderBook{
		Venue: "binance", Pair: btcUsdt,
		Bids:      []domain.OrderBookEntry{{Price: 49_990, Quantity: 1}},
		Asks:      []domain.OrderBookEntry{{Price: 50_000, Quantity: 1}},
		Timestamp: time.Now().UTC(),
	}
	table.Put(book)

	got, err := table.GetOrderBook(context.Background(), "binance", btcUsdt)
	require.NoError(t, err)
	assert.Equal(t, book, got)

	_, err = table.GetOrderBook(context.Background(), "kraken", btcUsdt)
	assert.ErrorIs(t, err, domain.ErrTransientData)
}

func TestSnapshotTableStaleBook(t *testing.T) {
	table := NewSnapshotTable(10 * time.Millisecond)
	table.Put(domain.OrderBook{
		Venue: "binance", Pair: btcUsdt,
		Timestamp: time.Now().UTC().Add(-time.Second),
	})

	_, err := table.GetOrderBook(context.Background(), "binance", btcUsdt)
	assert.ErrorIs(t, err, domain.ErrTransientData)
}

func TestHandleFrameStoresBook(t *testing.T) {
	table := NewSnapshotTable(time.Minute)
	f := NewWSFeed("binance", "ws://unused", []domain.TradingPair{btcUsdt}, table, testLogger())

	f.handleFrame([]byte(`{
		"type": "orderbook",
		"pair": "BTC/USDT",
		"bids": [[49990, 2], [49980, 1]],
		"asks": [[50000, 3]],
		"ts": 1700000000000
	}`))

	book, ok := table.books[bookKey("binance", btcUsdt)]
	require.True(t, ok)
	assert.Equal(t, "binance", book.Venue)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, 49_990.0, book.Bids[0].Price)
	assert.Equal(t, 2.0, book.Bids[0].Quantity)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), book.Timestamp)
}

func TestHandleFrameDropsMalformed(t *testing.T) {
	table := NewSnapshotTable(time.Minute)
	f := NewWSFeed("binance", "ws://unused", []domain.TradingPair{btcUsdt}, table, testLogger())

	f.handleFrame([]byte(`not json`))
	f.handleFrame([]byte(`{"type":"trade"}`))
	f.handleFrame([]byte(`{"type":"orderbook","pair":"garbage"}`))

	assert.Empty(t, table.books)
}

func TestHandleFrameSkipsNonPositiveLevels(t *testing.T) {
	table := NewSnapshotTable(time.Minute)
	f := NewWSFeed("binance", "ws://unused", []domain.TradingPair{btcUsdt}, table, testLogger())

	f.handleFrame([]byte(`{
		"type": "orderbook",
		"pair": "BTC/USDT",
		"bids": [[49990, 0], [49980, 1]],
		"asks": [[0, 3]]
	}`))

	book := table.books[bookKey("binance", btcUsdt)]
	require.Len(t, book.Bids, 1)
	assert.Empty(t, book.Asks)
}
