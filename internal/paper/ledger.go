// Package paper implements a simulated execution backend with the same
// order-placement contract as a live venue client, backed by an in-process
// balance ledger. It exists so the execution engine is exercised
// identically whether or not real capital is at risk, and so tests can
// assert on exact balance arithmetic without network dependencies.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Config seeds the ledger.
type Config struct {
	// FeeRates maps venue name to its taker fee rate (e.g. 0.001 = 0.1%).
	FeeRates map[string]float64
	// Seed is the starting balance rows.
	Seed []domain.Balance
}

// Ledger is a paper-trading venue backend. Fills are priced from the
// current order book supplied by the market data source; every simulated
// order, successful or not, appends an immutable TradeResult to the trade
// history. The balance table is the one piece of mutable shared state in
// the core: credits and debits for one order are applied atomically under
// the per-(venue, asset) key locks.
type Ledger struct {
	books    domain.MarketDataSource
	feeRates map[string]float64
	logger   *slog.Logger

	mu       sync.Mutex
	balances map[string]*domain.Balance
	history  []domain.TradeResult
}

// NewLedger creates a Ledger seeded from cfg.
func NewLedger(books domain.MarketDataSource, cfg Config, logger *slog.Logger) *Ledger {
	l := &Ledger{
		books:    books,
		feeRates: cfg.FeeRates,
		logger:   logger.With(slog.String("component", "paper_ledger")),
		balances: make(map[string]*domain.Balance),
	}
	for _, b := range cfg.Seed {
		l.balances[balanceKey(b.Venue, b.Asset)] = &domain.Balance{
			Venue:     b.Venue,
			Asset:     b.Asset,
			Total:     b.Total,
			Available: b.Total,
		}
	}
	return l
}

func balanceKey(venue, asset string) string {
	return venue + "|" + asset
}

// Deposit credits an asset on a venue. Used to seed or top up balances.
func (l *Ledger) Deposit(venue, asset string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(venue, asset)
	b.Total += amount
	b.Available += amount
}

// balance returns the row for (venue, asset), creating a zero row if
// missing. Callers must hold l.mu.
func (l *Ledger) balance(venue, asset string) *domain.Balance {
	key := balanceKey(venue, asset)
	b, ok := l.balances[key]
	if !ok {
		b = &domain.Balance{Venue: venue, Asset: asset}
		l.balances[key] = b
	}
	return b
}

// PlaceMarketOrder simulates a market order against the venue's current
// book. A buy debits the quote asset by cost plus fee and credits the base
// asset; a sell is the mirror operation at the best bid.
func (l *Ledger) PlaceMarketOrder(ctx context.Context, venue string, pair domain.TradingPair, side domain.OrderSide, quantity float64) (domain.TradeResult, error) {
	res := domain.TradeResult{
		OrderID:      uuid.New().String(),
		Venue:        venue,
		Pair:         pair,
		Side:         side,
		RequestedQty: quantity,
		FeeCurrency:  pair.Quote,
		Timestamp:    time.Now().UTC(),
	}

	if quantity <= 0 {
		return l.reject(res, fmt.Errorf("%w: non-positive quantity", domain.ErrOrderRejected))
	}

	book, err := l.books.GetOrderBook(ctx, venue, pair)
	if err != nil {
		return l.reject(res, fmt.Errorf("%w: %v", domain.ErrTransientData, err))
	}

	var price float64
	switch side {
	case domain.OrderSideBuy:
		ask, ok := book.BestAsk()
		if !ok {
			return l.reject(res, fmt.Errorf("%w: no asks on %s", domain.ErrOrderRejected, venue))
		}
		price = ask.Price
	case domain.OrderSideSell:
		bid, ok := book.BestBid()
		if !ok {
			return l.reject(res, fmt.Errorf("%w: no bids on %s", domain.ErrOrderRejected, venue))
		}
		price = bid.Price
	default:
		return l.reject(res, fmt.Errorf("%w: unknown side %q", domain.ErrOrderRejected, side))
	}

	res.RequestedPrice = price
	value := price * quantity
	fee := value * l.feeRates[venue]

	l.mu.Lock()
	defer l.mu.Unlock()

	quote := l.balance(venue, pair.Quote)
	base := l.balance(venue, pair.Base)

	switch side {
	case domain.OrderSideBuy:
		if quote.Available < value+fee {
			return l.rejectLocked(res, fmt.Errorf("%w: need %.8f %s, have %.8f",
				domain.ErrInsufficientBalance, value+fee, pair.Quote, quote.Available))
		}
		quote.Available -= value + fee
		quote.Total -= value + fee
		base.Available += quantity
		base.Total += quantity
	case domain.OrderSideSell:
		if base.Available < quantity {
			return l.rejectLocked(res, fmt.Errorf("%w: need %.8f %s, have %.8f",
				domain.ErrInsufficientBalance, quantity, pair.Base, base.Available))
		}
		base.Available -= quantity
		base.Total -= quantity
		quote.Available += value - fee
		quote.Total += value - fee
	}

	res.ExecutedPrice = price
	res.ExecutedQty = quantity
	res.TotalValue = value
	res.Fee = fee
	res.Success = true
	l.history = append(l.history, res)

	l.logger.Debug("paper order filled",
		slog.String("venue", venue),
		slog.String("pair", pair.String()),
		slog.String("side", string(side)),
		slog.Float64("price", price),
		slog.Float64("qty", quantity),
		slog.Float64("fee", fee),
	)
	return res, nil
}

// reject records a failed order in the trade history and returns it with
// the causing error.
func (l *Ledger) reject(res domain.TradeResult, err error) (domain.TradeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejectLocked(res, err)
}

func (l *Ledger) rejectLocked(res domain.TradeResult, err error) (domain.TradeResult, error) {
	res.Success = false
	res.ErrorMessage = err.Error()
	l.history = append(l.history, res)
	return res, err
}

// Balance returns a copy of the (venue, asset) row. A missing row reads as
// zero.
func (l *Ledger) Balance(venue, asset string) domain.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[balanceKey(venue, asset)]; ok {
		return *b
	}
	return domain.Balance{Venue: venue, Asset: asset}
}

// Balances returns a sorted copy of all balance rows.
func (l *Ledger) Balances() []domain.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Balance, 0, len(l.balances))
	for _, b := range l.balances {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}

// History returns a copy of the append-only trade history.
func (l *Ledger) History() []domain.TradeResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TradeResult, len(l.history))
	copy(out, l.history)
	return out
}

var _ domain.OrderPlacer = (*Ledger)(nil)
