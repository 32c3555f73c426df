// Package history is the REST client for the bootstrap endpoints: a
// one-shot historical candle fetch and a trade/signal history fetch. The
// endpoints are external collaborators; responses are assumed pre-validated,
// and empty or malformed arrays are valid "no data" results, not errors.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"botwatch/internal/domain"
)

// CandleQuery identifies one historical candle series.
type CandleQuery struct {
	Symbol     string
	Timeframe  string
	Venue      string
	MarketType string
	Limit      int
}

// Client talks to the monitoring server's REST bootstrap API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a bootstrap client for the API root, e.g. "https://host/api".
// token, when set, is presented as a bearer credential.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Candles fetches the historical candle series for q.
func (c *Client) Candles(ctx context.Context, q CandleQuery) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("symbol", q.Symbol)
	params.Set("timeframe", q.Timeframe)
	params.Set("venue", q.Venue)
	params.Set("market_type", domain.CanonicalMarketType(q.MarketType))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	body, err := c.doGet(ctx, "/candles?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("history: get candles %s: %w", q.Symbol, err)
	}

	var wire []domain.WireCandle
	if err := json.Unmarshal(body, &wire); err != nil {
		// Malformed payloads degrade to "no data".
		return nil, nil
	}
	return domain.NormalizeCandles(wire), nil
}

// Signals fetches the most recent trade/signal records for a bot.
func (c *Client) Signals(ctx context.Context, botID string, limit int) ([]domain.Signal, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	path := fmt.Sprintf("/bots/%s/signals?%s", url.PathEscape(botID), params.Encode())
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("history: get signals for %s: %w", botID, err)
	}

	var wire []domain.WireSignal
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, nil
	}
	return domain.NormalizeSignals(wire, limit), nil
}

// doGet performs a GET against the API root and returns the response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
