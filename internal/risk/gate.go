// Package risk implements the decision function applied at both risk
// checkpoints: admission at detection time and re-validation immediately
// before orders are placed.
package risk

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Gate validates opportunities against a RiskProfile snapshot. The hard
// notional cap is an operational limit on live capital at risk, applied on
// top of the profile's MaxTradeAmount during auto-execution sizing.
type Gate struct {
	hardNotionalCap float64
	logger          *slog.Logger
}

// NewGate creates a Gate. hardNotionalCap <= 0 disables the operational cap.
func NewGate(hardNotionalCap float64, logger *slog.Logger) *Gate {
	return &Gate{
		hardNotionalCap: hardNotionalCap,
		logger:          logger.With(slog.String("component", "risk_gate")),
	}
}

// Admit is the detection-time checkpoint: the spread must clear the
// profile's minimum profit and sizing must have produced a positive
// quantity. Detection already enforces both, so this guards opportunities
// arriving from other producers.
func (g *Gate) Admit(opp domain.ArbitrageOpportunity, profile domain.RiskProfile) error {
	if opp.SpreadPct < profile.MinProfitPct {
		return fmt.Errorf("%w: spread %.4f%% below minimum %.4f%%",
			domain.ErrNoOpportunity, opp.SpreadPct, profile.MinProfitPct)
	}
	if opp.EffectiveQty <= 0 {
		return fmt.Errorf("%w: non-positive effective quantity", domain.ErrNoOpportunity)
	}
	return nil
}

// Revalidate is the pre-execution checkpoint. It must be called with
// freshly fetched books, never cached ones: acting on stale data in a
// fast-moving market is the failure mode this guard exists for. Any
// rejection wraps domain.ErrMarketMoved and aborts before any order is
// placed.
func (g *Gate) Revalidate(opp domain.ArbitrageOpportunity, freshBuy, freshSell domain.OrderBook, profile domain.RiskProfile) error {
	ask, okAsk := freshBuy.BestAsk()
	bid, okBid := freshSell.BestBid()
	if !okAsk || !okBid {
		return fmt.Errorf("%w: book emptied since detection", domain.ErrMarketMoved)
	}

	buyDrift := driftPct(opp.BuyPrice, ask.Price)
	if buyDrift > profile.MaxPriceDriftPct {
		return fmt.Errorf("%w: buy price drifted %.4f%% (max %.4f%%)",
			domain.ErrMarketMoved, buyDrift, profile.MaxPriceDriftPct)
	}
	sellDrift := driftPct(opp.SellPrice, bid.Price)
	if sellDrift > profile.MaxPriceDriftPct {
		return fmt.Errorf("%w: sell price drifted %.4f%% (max %.4f%%)",
			domain.ErrMarketMoved, sellDrift, profile.MaxPriceDriftPct)
	}

	if ask.Price <= 0 || bid.Price <= ask.Price {
		return fmt.Errorf("%w: spread inverted since detection", domain.ErrMarketMoved)
	}
	freshSpreadPct := (bid.Price - ask.Price) / ask.Price * 100

	if math.Abs(freshSpreadPct-opp.SpreadPct) > profile.MaxVolatilityDriftPct {
		return fmt.Errorf("%w: spread moved %.4f%% -> %.4f%% (max drift %.4f%%)",
			domain.ErrMarketMoved, opp.SpreadPct, freshSpreadPct, profile.MaxVolatilityDriftPct)
	}

	if freshSpreadPct+profile.RevalidationTolerancePct < profile.MinProfitPct {
		return fmt.Errorf("%w: spread %.4f%% no longer clears minimum %.4f%%",
			domain.ErrMarketMoved, freshSpreadPct, profile.MinProfitPct)
	}

	return nil
}

// PositionSize caps the executable quantity for auto-execution. The
// profile's MaxTradeAmount already bounded the depth walk; the hard cap
// bounds live capital independently of any profile value.
func (g *Gate) PositionSize(opp domain.ArbitrageOpportunity, profile domain.RiskProfile) float64 {
	qty := opp.EffectiveQty
	if profile.MaxTradeAmount > 0 && opp.BuyPrice > 0 {
		if capped := profile.MaxTradeAmount / opp.BuyPrice; capped < qty {
			qty = capped
		}
	}
	if g.hardNotionalCap > 0 && opp.BuyPrice > 0 {
		if capped := g.hardNotionalCap / opp.BuyPrice; capped < qty {
			g.logger.Debug("position capped by hard notional limit",
				slog.String("opp_id", opp.ID),
				slog.Float64("qty", qty),
				slog.Float64("capped", capped),
			)
			qty = capped
		}
	}
	return qty
}

// driftPct is the absolute percentage move of current relative to reference.
func driftPct(reference, current float64) float64 {
	if reference == 0 {
		return 0
	}
	return math.Abs(current-reference) / reference * 100
}
