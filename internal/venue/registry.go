package venue

import (
	"context"
	"fmt"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Registry routes market data and order calls to the right venue client.
// It implements both domain.MarketDataSource and domain.OrderPlacer for
// live mode.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry creates a Registry over the given clients, keyed by venue
// name.
func NewRegistry(clients ...*Client) *Registry {
	r := &Registry{clients: make(map[string]*Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Venue()] = c
	}
	return r
}

// Client returns the client for a venue.
func (r *Registry) Client(venue string) (*Client, error) {
	c, ok := r.clients[venue]
	if !ok {
		return nil, fmt.Errorf("%w: venue %q not configured", domain.ErrNotFound, venue)
	}
	return c, nil
}

// GetOrderBook fetches the book from the named venue.
func (r *Registry) GetOrderBook(ctx context.Context, venue string, pair domain.TradingPair) (domain.OrderBook, error) {
	c, err := r.Client(venue)
	if err != nil {
		return domain.OrderBook{}, err
	}
	return c.GetOrderBook(ctx, pair)
}

// PlaceMarketOrder routes an order to the named venue.
func (r *Registry) PlaceMarketOrder(ctx context.Context, venue string, pair domain.TradingPair, side domain.OrderSide, quantity float64) (domain.TradeResult, error) {
	c, err := r.Client(venue)
	if err != nil {
		return domain.TradeResult{Venue: venue, Pair: pair, Side: side, RequestedQty: quantity, ErrorMessage: err.Error()}, err
	}
	return c.PlaceMarketOrder(ctx, pair, side, quantity)
}

var (
	_ domain.MarketDataSource = (*Registry)(nil)
	_ domain.OrderPlacer      = (*Registry)(nil)
)
