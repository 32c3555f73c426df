package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"botwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandlesNormalizesAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/candles", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "SPOT", r.URL.Query().Get("market_type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		// Mixed encodings, out of order, one duplicate time key.
		w.Write([]byte(`[
			{"time": 1700000060000, "open": 2, "high": 3, "low": 1, "close": 2.5},
			{"time": 1700000000, "open": 1, "high": 2, "low": 0.5, "close": 1.5},
			{"time": "2023-11-14T22:14:20Z", "open": 2.1, "high": 3.1, "low": 1.1, "close": 2.6}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", "tok")
	candles, err := c.Candles(context.Background(), CandleQuery{
		Symbol: "BTCUSDT", Timeframe: "1m", Venue: "binance", MarketType: "cex", Limit: 100,
	})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000), candles[0].Time)
	assert.Equal(t, int64(1700000060), candles[1].Time)
	// Later duplicate wins.
	assert.Equal(t, 2.6, candles[1].Close)
}

func TestSignalsSortedDescendingAndTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bots/bot-1/signals", r.URL.Path)
		w.Write([]byte(`[
			{"id": "a", "bot_id": "bot-1", "symbol": "btcusdt", "side": "buy", "price": 1, "timestamp": 1700000000, "status": "executed"},
			{"id": "b", "bot_id": "bot-1", "symbol": "BTCUSDT", "side": "SELL", "price": 2, "timestamp": 1700000120000, "status": "pending"},
			{"id": "c", "bot_id": "bot-1", "symbol": "BTCUSDT", "side": "BUY", "price": 3, "timestamp": 1700000060, "status": "executed"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", "")
	signals, err := c.Signals(context.Background(), "bot-1", 2)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "b", signals[0].ID)
	assert.Equal(t, domain.SideSell, signals[0].Side)
	assert.Equal(t, "c", signals[1].ID)
	assert.Equal(t, "BTCUSDT", signals[0].Symbol)
}

func TestEmptyAndMalformedBodiesAreNoData(t *testing.T) {
	payloads := []string{`[]`, `null`, `{"oops": true}`}
	for _, payload := range payloads {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(payload))
		}))

		c := New(srv.URL, "")
		candles, err := c.Candles(context.Background(), CandleQuery{Symbol: "BTCUSDT", Timeframe: "1m"})
		require.NoError(t, err, "payload %q", payload)
		assert.Nil(t, candles, "payload %q", payload)

		signals, err := c.Signals(context.Background(), "bot-1", 10)
		require.NoError(t, err, "payload %q", payload)
		assert.Nil(t, signals, "payload %q", payload)

		srv.Close()
	}
}

func TestHTTPErrorIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Candles(context.Background(), CandleQuery{Symbol: "BTCUSDT", Timeframe: "1m"})
	assert.Error(t, err)
}
