package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

func storedOpp(id string) domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		ID:              id,
		Pair:            domain.TradingPair{Base: "BTC", Quote: "USDT"},
		BuyVenue:        "binance",
		SellVenue:       "kraken",
		BuyPrice:        50_000,
		SellPrice:       50_700,
		EffectiveQty:    1,
		Spread:          700,
		SpreadPct:       1.4,
		EstimatedProfit: 700,
		DetectedAt:      time.Now().UTC().Truncate(time.Microsecond),
		Status:          domain.OpportunityExecuted,
	}
}

func storedLeg(venue string, side domain.OrderSide, price, qty float64, success bool) *domain.TradeResult {
	return &domain.TradeResult{
		OrderID:       "ord-" + venue,
		Venue:         venue,
		Pair:          domain.TradingPair{Base: "BTC", Quote: "USDT"},
		Side:          side,
		ExecutedPrice: price,
		ExecutedQty:   qty,
		TotalValue:    price * qty,
		Success:       success,
		Timestamp:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestTradeResultStoreRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	store := NewTradeResultStore(pool)
	ctx := context.Background()

	res := domain.ArbitrageTradeResult{
		ID:                uuid.New().String(),
		Opportunity:       storedOpp("opp-rt"),
		BuyResult:         storedLeg("binance", domain.OrderSideBuy, 50_000, 1, true),
		SellResult:        storedLeg("kraken", domain.OrderSideSell, 50_700, 1, true),
		Success:           true,
		RealizedProfit:    700,
		RealizedProfitPct: 1.4,
		StartedAt:         time.Now().UTC().Truncate(time.Microsecond),
		CompletedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Insert(ctx, res))

	got, err := store.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "opp-rt", got.Opportunity.ID)
	assert.True(t, got.Success)
	assert.InDelta(t, 700, got.RealizedProfit, 1e-9)
	require.NotNil(t, got.BuyResult)
	require.NotNil(t, got.SellResult)
	assert.Nil(t, got.CompensationResult)
	assert.Equal(t, "binance", got.BuyResult.Venue)
	assert.Equal(t, domain.OrderSideSell, got.SellResult.Side)
	assert.InDelta(t, 50_700, got.SellResult.TotalValue, 1e-9)
}

func TestTradeResultStoreDailyCounters(t *testing.T) {
	pool := setupTestDB(t)
	store := NewTradeResultStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	since := now.Add(-time.Hour)

	executed := domain.ArbitrageTradeResult{
		ID:          uuid.New().String(),
		Opportunity: storedOpp("opp-exec"),
		BuyResult:   storedLeg("binance", domain.OrderSideBuy, 50_000, 1, true),
		SellResult:  storedLeg("kraken", domain.OrderSideSell, 50_700, 1, true),
		Success:     true,
		StartedAt:   now,
		CompletedAt: now,
	}
	rejected := domain.ArbitrageTradeResult{
		ID:            uuid.New().String(),
		Opportunity:   storedOpp("opp-rej"),
		BuyResult:     storedLeg("binance", domain.OrderSideBuy, 0, 0, false),
		FailureReason: domain.FailureOrderRejected,
		ErrorMessage:  "venue maintenance",
		StartedAt:     now,
		CompletedAt:   now,
	}
	moved := domain.ArbitrageTradeResult{
		ID:            uuid.New().String(),
		Opportunity:   storedOpp("opp-moved"),
		FailureReason: domain.FailureMarketMoved,
		ErrorMessage:  "buy price drift 1.00% exceeds 0.50%",
		StartedAt:     now,
		CompletedAt:   now,
	}
	stale := domain.ArbitrageTradeResult{
		ID:          uuid.New().String(),
		Opportunity: storedOpp("opp-stale"),
		BuyResult:   storedLeg("binance", domain.OrderSideBuy, 50_000, 1, true),
		SellResult:  storedLeg("kraken", domain.OrderSideSell, 50_700, 1, true),
		Success:     true,
		StartedAt:   since.Add(-24 * time.Hour),
		CompletedAt: since.Add(-24 * time.Hour),
	}
	for _, res := range []domain.ArbitrageTradeResult{executed, rejected, moved, stale} {
		require.NoError(t, store.Insert(ctx, res))
	}

	// The rejected buy still reached a venue, so it consumes a trade slot.
	// The market-moved abort placed no orders and the stale execution
	// predates the window.
	count, err := store.CountSince(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Volume only accrues from successful executions inside the window.
	volume, err := store.SumVolumeSince(ctx, since)
	require.NoError(t, err)
	assert.InDelta(t, 50_000, volume, 1e-9)
}
