package paper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

var btcUsdt = domain.TradingPair{Base: "BTC", Quote: "USDT"}

// staticBooks serves fixed order books keyed by venue.
type staticBooks struct {
	mu    sync.Mutex
	books map[string]domain.OrderBook
	err   error
}

func (s *staticBooks) GetOrderBook(_ context.Context, venue string, _ domain.TradingPair) (domain.OrderBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.OrderBook{}, s.err
	}
	book, ok := s.books[venue]
	if !ok {
		return domain.OrderBook{}, fmt.Errorf("%w: unknown venue %s", domain.ErrTransientData, venue)
	}
	return book, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T, feeRate float64) (*Ledger, *staticBooks) {
	t.Helper()
	books := &staticBooks{books: map[string]domain.OrderBook{
		"binance": {
			Venue: "binance", Pair: btcUsdt,
			Bids: []domain.OrderBookEntry{{Price: 49_990, Quantity: 5}},
			Asks: []domain.OrderBookEntry{{Price: 50_000, Quantity: 5}},
		},
	}}
	l := NewLedger(books, Config{
		FeeRates: map[string]float64{"binance": feeRate},
		Seed: []domain.Balance{
			{Venue: "binance", Asset: "USDT", Total: 100_000},
			{Venue: "binance", Asset: "BTC", Total: 1},
		},
	}, testLogger())
	return l, books
}

func TestBuyDebitsQuoteCreditsBase(t *testing.T) {
	l, _ := newTestLedger(t, 0.001)

	res, err := l.PlaceMarketOrder(context.Background(), "binance", btcUsdt, domain.OrderSideBuy, 1)
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, 50_000.0, res.ExecutedPrice)
	assert.Equal(t, 1.0, res.ExecutedQty)
	assert.Equal(t, 50_000.0, res.TotalValue)
	assert.Equal(t, 50.0, res.Fee)
	assert.Equal(t, "USDT", res.FeeCurrency)

	assert.InDelta(t, 100_000-50_050, l.Balance("binance", "USDT").Available, 1e-9)
	assert.InDelta(t, 2, l.Balance("binance", "BTC").Available, 1e-9)
}

func TestSellCreditsQuoteDebitsBase(t *testing.T) {
	l, _ := newTestLedger(t, 0.001)

	res, err := l.PlaceMarketOrder(context.Background(), "binance", btcUsdt, domain.OrderSideSell, 0.5)
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, 49_990.0, res.ExecutedPrice)
	proceeds := 49_990 * 0.5
	fee := proceeds * 0.001
	assert.InDelta(t, proceeds, res.TotalValue, 1e-9)
	assert.InDelta(t, fee, res.Fee, 1e-9)

	assert.InDelta(t, 100_000+proceeds-fee, l.Balance("binance", "USDT").Available, 1e-9)
	assert.InDelta(t, 0.5, l.Balance("binance", "BTC").Available, 1e-9)
}

func TestInsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t, 0)

	// 100,000 USDT buys at most 2 BTC at 50,000.
	res, err := l.PlaceMarketOrder(context.Background(), "binance", btcUsdt, domain.OrderSideBuy, 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorMessage)

	// Balances untouched.
	assert.Equal(t, 100_000.0, l.Balance("binance", "USDT").Available)
	assert.Equal(t, 1.0, l.Balance("binance", "BTC").Available)

	// The failed order still lands in the history.
	hist := l.History()
	require.Len(t, hist, 1)
	assert.False(t, hist[0].Success)
}

func TestFetchFailureRejectsOrder(t *testing.T) {
	l, books := newTestLedger(t, 0)
	books.err = domain.ErrTransientData

	_, err := l.PlaceMarketOrder(context.Background(), "binance", btcUsdt, domain.OrderSideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrTransientData)
	assert.Equal(t, 100_000.0, l.Balance("binance", "USDT").Available)
}

func TestConservation(t *testing.T) {
	// After any sequence of fills, balances must equal the seed plus the
	// sum of all credits minus all debits in the trade history.
	l, _ := newTestLedger(t, 0.002)
	ctx := context.Background()

	orders := []struct {
		side domain.OrderSide
		qty  float64
	}{
		{domain.OrderSideBuy, 0.5},
		{domain.OrderSideSell, 0.3},
		{domain.OrderSideBuy, 0.2},
		{domain.OrderSideSell, 1.0},
		{domain.OrderSideBuy, 100}, // fails: insufficient quote
	}
	for _, o := range orders {
		_, _ = l.PlaceMarketOrder(ctx, "binance", btcUsdt, o.side, o.qty)
	}

	baseDelta, quoteDelta := 0.0, 0.0
	for _, tr := range l.History() {
		if !tr.Success {
			continue
		}
		if tr.Side == domain.OrderSideBuy {
			baseDelta += tr.ExecutedQty
			quoteDelta -= tr.TotalValue + tr.Fee
		} else {
			baseDelta -= tr.ExecutedQty
			quoteDelta += tr.TotalValue - tr.Fee
		}
	}

	assert.InDelta(t, 1+baseDelta, l.Balance("binance", "BTC").Total, 1e-9)
	assert.InDelta(t, 100_000+quoteDelta, l.Balance("binance", "USDT").Total, 1e-9)
}

func TestConcurrentOrdersKeepLedgerConsistent(t *testing.T) {
	l, _ := newTestLedger(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.PlaceMarketOrder(ctx, "binance", btcUsdt, domain.OrderSideBuy, 0.01)
			_, _ = l.PlaceMarketOrder(ctx, "binance", btcUsdt, domain.OrderSideSell, 0.01)
		}()
	}
	wg.Wait()

	// Every buy is matched by a sell of the same size at fixed prices, so
	// the base balance must be exactly the seed.
	assert.InDelta(t, 1.0, l.Balance("binance", "BTC").Total, 1e-9)
	assert.Len(t, l.History(), 100)
}

func TestDeposit(t *testing.T) {
	l, _ := newTestLedger(t, 0)
	l.Deposit("kraken", "USDT", 500)
	b := l.Balance("kraken", "USDT")
	assert.Equal(t, 500.0, b.Total)
	assert.Equal(t, 500.0, b.Available)

	all := l.Balances()
	require.Len(t, all, 3)
}
