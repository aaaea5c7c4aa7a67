package domain

import "time"

// OrderBookEntry is a single price level: a price and the quantity resting
// at that price.
type OrderBookEntry struct {
	Price    float64
	Quantity float64
}

// OrderBook is a full snapshot of one venue's book for one trading pair.
// Bids are ordered best-first descending, asks best-first ascending. A book
// is replaced wholesale on each refresh; there is no incremental patching.
type OrderBook struct {
	Venue     string
	Pair      TradingPair
	Bids      []OrderBookEntry
	Asks      []OrderBookEntry
	Timestamp time.Time
}

// BestBid returns the highest bid, if any.
func (b OrderBook) BestBid() (OrderBookEntry, bool) {
	if len(b.Bids) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (b OrderBook) BestAsk() (OrderBookEntry, bool) {
	if len(b.Asks) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Asks[0], true
}

// Crossed reports whether the best bid is at or above the best ask. A
// crossed book is a data-quality failure upstream, not a trading signal.
func (b OrderBook) Crossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return false
	}
	return bid.Price >= ask.Price
}
