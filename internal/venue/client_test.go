package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

var btcUsdt = domain.TradingPair{Base: "BTC", Quote: "USDT"}

func testCreds() Credentials {
	return Credentials{APIKey: "key-1", APISecret: "secret-1"}
}

// verifySignature recomputes the HMAC the client should have sent.
func verifySignature(t *testing.T, r *http.Request, secret string, body []byte) {
	t.Helper()
	ts := r.Header.Get("X-API-TIMESTAMP")
	require.NotEmpty(t, ts)

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + r.Method + path))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, r.Header.Get("X-API-SIGN"))
}

func TestGetOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/orderbook", r.URL.Path)
		assert.Equal(t, "BTC/USDT", r.URL.Query().Get("pair"))
		assert.Equal(t, "key-1", r.Header.Get("X-API-KEY"))
		verifySignature(t, r, "secret-1", nil)

		_, _ = w.Write([]byte(`{
			"pair": "BTC/USDT",
			"bids": [[49990, 2]],
			"asks": [[50000, 3], [0, 1]],
			"ts": 1700000000000
		}`))
	}))
	defer srv.Close()

	c := NewClient("binance", srv.URL, testCreds())
	book, err := c.GetOrderBook(context.Background(), btcUsdt)
	require.NoError(t, err)

	assert.Equal(t, "binance", book.Venue)
	assert.Equal(t, btcUsdt, book.Pair)
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1) // zero-price level dropped
	assert.Equal(t, 50_000.0, book.Asks[0].Price)
}

func TestGetOrderBookServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("binance", srv.URL, testCreds())
	_, err := c.GetOrderBook(context.Background(), btcUsdt)
	assert.ErrorIs(t, err, domain.ErrTransientData)
}

func TestPlaceMarketOrderFilled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		verifySignature(t, r, "secret-1", body)
		assert.JSONEq(t, `{"pair":"BTC/USDT","side":"buy","type":"market","quantity":0.5}`, string(body))

		_, _ = w.Write([]byte(`{
			"order_id": "o-123",
			"status": "filled",
			"price": 50000,
			"executed_qty": 0.5,
			"quote_value": 25000,
			"fee": 25,
			"fee_currency": "USDT"
		}`))
	}))
	defer srv.Close()

	c := NewClient("binance", srv.URL, testCreds())
	res, err := c.PlaceMarketOrder(context.Background(), btcUsdt, domain.OrderSideBuy, 0.5)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "o-123", res.OrderID)
	assert.Equal(t, 50_000.0, res.ExecutedPrice)
	assert.Equal(t, 0.5, res.ExecutedQty)
	assert.Equal(t, 25_000.0, res.TotalValue)
	assert.Equal(t, 25.0, res.Fee)
	assert.Equal(t, "USDT", res.FeeCurrency)
}

func TestPlaceMarketOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"order_id":"o-1","status":"rejected","message":"market closed"}`))
	}))
	defer srv.Close()

	c := NewClient("binance", srv.URL, testCreds())
	res, err := c.PlaceMarketOrder(context.Background(), btcUsdt, domain.OrderSideSell, 1)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
	assert.False(t, res.Success)
	assert.Equal(t, "market closed", res.ErrorMessage)
}

func TestPlaceMarketOrderInsufficientBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"insufficient_balance","message":"need more USDT"}`))
	}))
	defer srv.Close()

	c := NewClient("binance", srv.URL, testCreds())
	res, err := c.PlaceMarketOrder(context.Background(), btcUsdt, domain.OrderSideBuy, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.False(t, res.Success)
}

func TestRegistryRouting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"pair":"BTC/USDT","bids":[[1,1]],"asks":[[2,1]]}`))
	}))
	defer srv.Close()

	reg := NewRegistry(NewClient("binance", srv.URL, testCreds()))

	book, err := reg.GetOrderBook(context.Background(), "binance", btcUsdt)
	require.NoError(t, err)
	assert.Equal(t, "binance", book.Venue)

	_, err = reg.GetOrderBook(context.Background(), "kraken", btcUsdt)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = reg.PlaceMarketOrder(context.Background(), "kraken", btcUsdt, domain.OrderSideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
