package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// bookMessage is the normalized order book frame venue gateways publish.
// Levels are [price, quantity] tuples; bids arrive best-first descending,
// asks best-first ascending.
type bookMessage struct {
	Type      string       `json:"type"`
	Pair      string       `json:"pair"`
	Bids      [][2]float64 `json:"bids"`
	Asks      [][2]float64 `json:"asks"`
	Timestamp int64        `json:"ts"`
}

// subscribeCommand requests order book frames for a set of pairs.
type subscribeCommand struct {
	Op      string   `json:"op"`
	Channel string   `json:"channel"`
	Pairs   []string `json:"pairs"`
}

// WSFeed maintains a WebSocket connection to one venue's book stream and
// writes every snapshot into the shared table. It reconnects with
// exponential backoff and re-subscribes after each reconnect.
type WSFeed struct {
	venue  string
	wsURL  string
	pairs  []domain.TradingPair
	table  *SnapshotTable
	logger *slog.Logger
}

// NewWSFeed creates a feed for one venue.
func NewWSFeed(venue, wsURL string, pairs []domain.TradingPair, table *SnapshotTable, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		venue:  venue,
		wsURL:  wsURL,
		pairs:  pairs,
		table:  table,
		logger: logger.With(slog.String("component", "ws_feed"), slog.String("venue", venue)),
	}
}

// Run connects and streams until ctx is cancelled, reconnecting on any
// connection failure.
func (f *WSFeed) Run(ctx context.Context) error {
	if len(f.pairs) == 0 {
		f.logger.Info("no pairs to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection dials, subscribes, and reads frames until the connection
// breaks or ctx is cancelled.
func (f *WSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	// Drop the connection when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go f.pingLoop(ctx, conn)

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("feed subscribed", slog.Int("pairs", len(f.pairs)))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleFrame(raw)
	}
}

func (f *WSFeed) subscribe(conn *websocket.Conn) error {
	pairs := make([]string, len(f.pairs))
	for i, p := range f.pairs {
		pairs[i] = p.String()
	}
	cmd := subscribeCommand{Op: "subscribe", Channel: "orderbook", Pairs: pairs}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

func (f *WSFeed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame parses a book frame and stores it. Unparseable frames are
// dropped; a malformed message from one venue must not take the feed down.
func (f *WSFeed) handleFrame(raw []byte) {
	var msg bookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "orderbook" {
		return
	}
	book, err := msg.toBook(f.venue)
	if err != nil {
		f.logger.Debug("dropping book frame", slog.String("error", err.Error()))
		return
	}
	f.table.Put(book)
}

// toBook converts a wire frame into a domain order book.
func (m bookMessage) toBook(venue string) (domain.OrderBook, error) {
	pair, err := domain.ParsePair(m.Pair)
	if err != nil {
		return domain.OrderBook{}, err
	}
	ts := time.Now().UTC()
	if m.Timestamp > 0 {
		ts = time.UnixMilli(m.Timestamp).UTC()
	}
	book := domain.OrderBook{
		Venue:     venue,
		Pair:      pair,
		Bids:      toEntries(m.Bids),
		Asks:      toEntries(m.Asks),
		Timestamp: ts,
	}
	return book, nil
}

func toEntries(levels [][2]float64) []domain.OrderBookEntry {
	entries := make([]domain.OrderBookEntry, 0, len(levels))
	for _, lvl := range levels {
		if lvl[0] <= 0 || lvl[1] <= 0 {
			continue
		}
		entries = append(entries, domain.OrderBookEntry{Price: lvl[0], Quantity: lvl[1]})
	}
	return entries
}
