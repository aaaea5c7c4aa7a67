package domain

import "context"

// MarketDataSource supplies order-book snapshots per venue. A fetch may
// fail with ErrTransientData (possibly wrapped); callers treat that as "no
// opportunity this cycle", never as fatal.
type MarketDataSource interface {
	GetOrderBook(ctx context.Context, venue string, pair TradingPair) (OrderBook, error)
}

// OrderPlacer accepts market orders and returns fill results. It is
// implemented identically by live venue clients and the paper ledger, so
// the execution engine cannot tell whether real capital is at risk.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, venue string, pair TradingPair, side OrderSide, quantity float64) (TradeResult, error)
}
