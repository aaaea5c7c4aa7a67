// Package venue implements the live trading backend: one REST client per
// venue gateway, authenticated with HMAC-signed requests, and a registry
// that routes calls by venue name.
package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Credentials authenticate against one venue gateway.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Client talks to a single venue gateway over its normalized REST API.
type Client struct {
	venue      string
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// NewClient creates a Client for one venue.
func NewClient(venue, baseURL string, creds Credentials) *Client {
	return &Client{
		venue:   venue,
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Venue returns the venue name this client is bound to.
func (c *Client) Venue() string {
	return c.venue
}

// bookResponse is the gateway's order book payload. Levels are
// [price, quantity] tuples.
type bookResponse struct {
	Pair      string       `json:"pair"`
	Bids      [][2]float64 `json:"bids"`
	Asks      [][2]float64 `json:"asks"`
	Timestamp int64        `json:"ts"`
}

// GetOrderBook fetches the current book for pair.
func (c *Client) GetOrderBook(ctx context.Context, pair domain.TradingPair) (domain.OrderBook, error) {
	path := "/v1/orderbook?" + url.Values{"pair": {pair.String()}}.Encode()
	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: %s orderbook: %v", domain.ErrTransientData, c.venue, err)
	}

	var resp bookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: %s decode orderbook: %v", domain.ErrTransientData, c.venue, err)
	}

	ts := time.Now().UTC()
	if resp.Timestamp > 0 {
		ts = time.UnixMilli(resp.Timestamp).UTC()
	}
	return domain.OrderBook{
		Venue:     c.venue,
		Pair:      pair,
		Bids:      toEntries(resp.Bids),
		Asks:      toEntries(resp.Asks),
		Timestamp: ts,
	}, nil
}

// orderRequest is the gateway's market order payload.
type orderRequest struct {
	Pair     string  `json:"pair"`
	Side     string  `json:"side"`
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
}

// orderResponse is the gateway's fill report.
type orderResponse struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	Price       float64 `json:"price"`
	ExecutedQty float64 `json:"executed_qty"`
	QuoteValue  float64 `json:"quote_value"`
	Fee         float64 `json:"fee"`
	FeeCurrency string  `json:"fee_currency"`
	Message     string  `json:"message"`
}

// PlaceMarketOrder submits a market order and reports the fill.
func (c *Client) PlaceMarketOrder(ctx context.Context, pair domain.TradingPair, side domain.OrderSide, quantity float64) (domain.TradeResult, error) {
	res := domain.TradeResult{
		Venue:        c.venue,
		Pair:         pair,
		Side:         side,
		RequestedQty: quantity,
		Timestamp:    time.Now().UTC(),
	}

	req := orderRequest{
		Pair:     pair.String(),
		Side:     string(side),
		Type:     "market",
		Quantity: quantity,
	}
	body, err := c.doSignedRequest(ctx, http.MethodPost, "/v1/orders", req)
	if err != nil {
		res.ErrorMessage = err.Error()
		return res, fmt.Errorf("venue %s: place order: %w", c.venue, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		res.ErrorMessage = err.Error()
		return res, fmt.Errorf("venue %s: decode order response: %w", c.venue, err)
	}

	res.OrderID = resp.OrderID
	res.ExecutedPrice = resp.Price
	res.ExecutedQty = resp.ExecutedQty
	res.TotalValue = resp.QuoteValue
	res.Fee = resp.Fee
	res.FeeCurrency = resp.FeeCurrency
	if res.FeeCurrency == "" {
		res.FeeCurrency = pair.Quote
	}

	if resp.Status != "filled" {
		res.ErrorMessage = resp.Message
		return res, fmt.Errorf("venue %s: %w: %s", c.venue, domain.ErrOrderRejected, resp.Message)
	}
	res.Success = true
	return res, nil
}

// doSignedRequest builds, signs, sends, and reads one request.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var jsonBody []byte
	var bodyReader io.Reader
	if reqBody != nil {
		var err error
		jsonBody, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.signRequest(req, method, path, jsonBody)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// signRequest adds HMAC-SHA256 authentication headers. The signed message
// is timestamp + method + path + body.
func (c *Client) signRequest(req *http.Request, method, path string, body []byte) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	mac := hmac.New(sha256.New, []byte(c.creds.APISecret))
	mac.Write([]byte(ts + method + path))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("X-API-KEY", c.creds.APIKey)
	req.Header.Set("X-API-SIGN", sig)
	req.Header.Set("X-API-TIMESTAMP", ts)
}

// errorResponse is the gateway's error payload.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// checkStatus maps non-2xx responses to domain errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case apiErr.Code == "insufficient_balance":
		return fmt.Errorf("%w: %s", domain.ErrInsufficientBalance, apiErr.Message)
	case statusCode == http.StatusBadRequest, statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s (%s)", domain.ErrOrderRejected, apiErr.Message, apiErr.Code)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("venue %s: unauthorized: %s", c.venue, apiErr.Message)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, apiErr.Message)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrTransientData, statusCode, apiErr.Message)
	}
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
