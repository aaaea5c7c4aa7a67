// Package detector implements opportunity detection between two venues'
// order books. Detection is a pure function of its inputs: no I/O, no
// hidden state, safe to run many times per second across venue and pair
// combinations.
package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Detect compares the buy-candidate venue's asks against the sell-candidate
// venue's bids and returns an opportunity when the spread clears the
// profile's minimum profit and depth-aware sizing yields a positive
// quantity. The boolean is false when there is no opportunity, which is the
// common case and is computed without allocation.
func Detect(buyBook, sellBook domain.OrderBook, profile domain.RiskProfile) (domain.ArbitrageOpportunity, bool) {
	bestAsk, okAsk := buyBook.BestAsk()
	bestBid, okBid := sellBook.BestBid()
	if !okAsk || !okBid {
		return domain.ArbitrageOpportunity{}, false
	}

	buyPrice := bestAsk.Price
	sellPrice := bestBid.Price
	if buyPrice <= 0 || sellPrice <= buyPrice {
		return domain.ArbitrageOpportunity{}, false
	}

	spread := sellPrice - buyPrice
	spreadPct := spread / buyPrice * 100
	if spreadPct < profile.MinProfitPct {
		return domain.ArbitrageOpportunity{}, false
	}

	buyLimit := buyPrice * (1 + profile.MaxSlippagePct/100)
	sellLimit := sellPrice * (1 - profile.MaxSlippagePct/100)

	buyQty := walkAsks(buyBook.Asks, buyLimit, profile.MaxTradeAmount)
	sellQty := walkBids(sellBook.Bids, sellLimit, profile.MaxTradeAmount)

	qty := buyQty
	if sellQty < qty {
		qty = sellQty
	}
	// The notional cap applies at the buy price regardless of which side
	// the depth walk stopped on.
	if profile.MaxTradeAmount > 0 {
		if capQty := profile.MaxTradeAmount / buyPrice; capQty < qty {
			qty = capQty
		}
	}
	if qty <= 0 {
		return domain.ArbitrageOpportunity{}, false
	}

	return domain.ArbitrageOpportunity{
		ID:              uuid.New().String(),
		Pair:            buyBook.Pair,
		BuyVenue:        buyBook.Venue,
		SellVenue:       sellBook.Venue,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		BuyDepthQty:     buyQty,
		SellDepthQty:    sellQty,
		EffectiveQty:    qty,
		Spread:          spread,
		SpreadPct:       spreadPct,
		EstimatedProfit: spread * qty,
		DetectedAt:      time.Now().UTC(),
		Status:          domain.OpportunityDetected,
	}, true
}

// walkAsks accumulates ask quantity from the best price upward while the
// level price stays at or below limitPrice, stopping once the accumulated
// notional reaches maxNotional. The level that crosses the notional bound
// is included whole; the final quantity cap is applied by the caller.
func walkAsks(asks []domain.OrderBookEntry, limitPrice, maxNotional float64) float64 {
	var qty, notional float64
	for _, lvl := range asks {
		if lvl.Price > limitPrice {
			break
		}
		qty += lvl.Quantity
		notional += lvl.Price * lvl.Quantity
		if maxNotional > 0 && notional >= maxNotional {
			break
		}
	}
	return qty
}

// walkBids is the mirror of walkAsks: it accumulates bid quantity from the
// best price downward while the level price stays at or above limitPrice.
func walkBids(bids []domain.OrderBookEntry, limitPrice, maxNotional float64) float64 {
	var qty, notional float64
	for _, lvl := range bids {
		if lvl.Price < limitPrice {
			break
		}
		qty += lvl.Quantity
		notional += lvl.Price * lvl.Quantity
		if maxNotional > 0 && notional >= maxNotional {
			break
		}
	}
	return qty
}
