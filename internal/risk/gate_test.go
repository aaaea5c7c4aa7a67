package risk

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

var btcUsdt = domain.TradingPair{Base: "BTC", Quote: "USDT"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func opp() domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		ID:           "opp-1",
		Pair:         btcUsdt,
		BuyVenue:     "binance",
		SellVenue:    "kraken",
		BuyPrice:     100,
		SellPrice:    101.4,
		EffectiveQty: 1,
		SpreadPct:    1.4,
		Status:       domain.OpportunityDetected,
	}
}

func prof() domain.RiskProfile {
	return domain.RiskProfile{
		MinProfitPct:          0.5,
		MaxTradeAmount:        1000,
		MaxPriceDriftPct:      0.01,
		MaxVolatilityDriftPct: 0.5,
	}
}

func books(buyAsk, sellBid float64) (domain.OrderBook, domain.OrderBook) {
	buy := domain.OrderBook{Venue: "binance", Pair: btcUsdt,
		Asks: []domain.OrderBookEntry{{Price: buyAsk, Quantity: 10}}}
	sell := domain.OrderBook{Venue: "kraken", Pair: btcUsdt,
		Bids: []domain.OrderBookEntry{{Price: sellBid, Quantity: 10}}}
	return buy, sell
}

func TestAdmit(t *testing.T) {
	g := NewGate(0, testLogger())

	require.NoError(t, g.Admit(opp(), prof()))

	thin := opp()
	thin.SpreadPct = 0.3
	assert.ErrorIs(t, g.Admit(thin, prof()), domain.ErrNoOpportunity)

	empty := opp()
	empty.EffectiveQty = 0
	assert.ErrorIs(t, g.Admit(empty, prof()), domain.ErrNoOpportunity)
}

func TestRevalidateUnchangedBooks(t *testing.T) {
	g := NewGate(0, testLogger())
	buy, sell := books(100, 101.4)
	require.NoError(t, g.Revalidate(opp(), buy, sell, prof()))
}

func TestRevalidateBuyPriceDrift(t *testing.T) {
	// Detection saw buyPrice=100; the refetch shows 100.5, a 0.5% drift
	// against a 0.01% limit. Execution must abort with MarketMoved.
	g := NewGate(0, testLogger())
	buy, sell := books(100.5, 101.4)
	err := g.Revalidate(opp(), buy, sell, prof())
	assert.ErrorIs(t, err, domain.ErrMarketMoved)
}

func TestRevalidateSellPriceDrift(t *testing.T) {
	g := NewGate(0, testLogger())
	buy, sell := books(100, 100.05) // bid dropped 1.33%
	err := g.Revalidate(opp(), buy, sell, prof())
	assert.ErrorIs(t, err, domain.ErrMarketMoved)
}

func TestRevalidateEmptyBook(t *testing.T) {
	g := NewGate(0, testLogger())
	buy, sell := books(100, 101.4)
	sell.Bids = nil
	err := g.Revalidate(opp(), buy, sell, prof())
	assert.ErrorIs(t, err, domain.ErrMarketMoved)
}

func TestRevalidateVolatilityDrift(t *testing.T) {
	g := NewGate(0, testLogger())
	p := prof()
	p.MaxPriceDriftPct = 5 // generous so only the spread check trips

	// Spread went from 1.4% to 3.4%: above the 0.5% volatility drift limit
	// even though both legs stayed within the per-leg price drift bound.
	buy, sell := books(99, 102.366)
	err := g.Revalidate(opp(), buy, sell, p)
	assert.ErrorIs(t, err, domain.ErrMarketMoved)
}

func TestRevalidateMinProfitWithTolerance(t *testing.T) {
	g := NewGate(0, testLogger())
	p := prof()
	p.MaxPriceDriftPct = 5
	p.MaxVolatilityDriftPct = 5

	// Spread collapsed to 0.4%, below the 0.5% minimum.
	buy, sell := books(100, 100.4)
	err := g.Revalidate(opp(), buy, sell, p)
	assert.ErrorIs(t, err, domain.ErrMarketMoved)

	// An explicit tolerance admits the same books.
	p.RevalidationTolerancePct = 0.2
	require.NoError(t, g.Revalidate(opp(), buy, sell, p))
}

func TestPositionSize(t *testing.T) {
	p := prof()
	o := opp()
	o.EffectiveQty = 5

	// No hard cap: profile notional cap applies (1000/100 = 10 > 5).
	g := NewGate(0, testLogger())
	assert.Equal(t, 5.0, g.PositionSize(o, p))

	// Hard cap of 200 quote units caps the quantity at 2.
	g = NewGate(200, testLogger())
	assert.Equal(t, 2.0, g.PositionSize(o, p))

	// Profile cap tighter than both.
	p.MaxTradeAmount = 100
	assert.Equal(t, 1.0, g.PositionSize(o, p))
}
