package subscribe

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"botwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	sent []domain.PricesSubscribeCommand
}

func (s *captureSender) Send(v any) {
	cmd, ok := v.(domain.PricesSubscribeCommand)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
}

func (s *captureSender) commands() []domain.PricesSubscribeCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PricesSubscribeCommand, len(s.sent))
	copy(out, s.sent)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(s Sender) *Engine {
	return New(s, Config{Debounce: 20 * time.Millisecond}, testLogger())
}

func settle() { time.Sleep(80 * time.Millisecond) }

func TestTickersNormalization(t *testing.T) {
	bots := []domain.Bot{
		{Symbol: "ethusdt", Venue: "", MarketType: "cex", Status: domain.BotStatusActive},
		{Symbol: "BTCUSDT", Venue: "binance", MarketType: "CEX", Status: domain.BotStatusActive},
		{Symbol: "BTCUSDT", Venue: "BINANCE", MarketType: "SPOT", Status: domain.BotStatusWaiting}, // dup, venue case-insensitive
		{Symbol: "SOLUSDT", Venue: "bybit", MarketType: "futures", Status: domain.BotStatusActive},
		{Symbol: "", Venue: "binance", Status: domain.BotStatusActive}, // no symbol, skipped
	}

	items := Tickers(bots, DefaultVenue)
	require.Len(t, items, 3)

	// Deterministic order by venue|marketType|symbol.
	assert.Equal(t, domain.TickerItem{ExchangeID: "binance", MarketType: "SPOT", Symbol: "BTCUSDT"}, items[0])
	assert.Equal(t, domain.TickerItem{ExchangeID: "BINANCE", MarketType: "SPOT", Symbol: "ETHUSDT"}, items[1])
	assert.Equal(t, domain.TickerItem{ExchangeID: "bybit", MarketType: "FUTURES", Symbol: "SOLUSDT"}, items[2])
}

func TestVisibleFilter(t *testing.T) {
	bots := []domain.Bot{
		{ID: "a", Status: domain.BotStatusActive},
		{ID: "b", Status: domain.BotStatusWaiting},
		{ID: "c", Status: domain.BotStatusStopped},
		{ID: "d", Status: domain.BotStatusPaused},
	}
	got := Visible(bots)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestIdempotentSubscription(t *testing.T) {
	sender := &captureSender{}
	e := newTestEngine(sender)

	a := domain.Bot{ID: "a", Symbol: "BTCUSDT", Venue: "binance", MarketType: "SPOT", Status: domain.BotStatusActive}
	b := domain.Bot{ID: "b", Symbol: "ETHUSDT", Venue: "binance", MarketType: "CEX", Status: domain.BotStatusActive}

	// Many re-renders resolving to the same semantic set.
	e.Update([]domain.Bot{a, b})
	e.Update([]domain.Bot{b, a})
	e.Update([]domain.Bot{a, b, b})
	settle()

	cmds := sender.commands()
	require.Len(t, cmds, 1, "same semantic set must produce at most one SUBSCRIBE")
	assert.Equal(t, domain.ActionPricesSubscribe, cmds[0].Action)
	require.Len(t, cmds[0].Items, 2)

	// Same set again after the flush: still nothing new.
	e.Update([]domain.Bot{b, a})
	settle()
	assert.Len(t, sender.commands(), 1)

	// A genuinely different set sends the full replacement.
	e.Update([]domain.Bot{a})
	settle()
	cmds = sender.commands()
	require.Len(t, cmds, 2)
	assert.Len(t, cmds[1].Items, 1)
}

func TestRevertBeforeDebounceCancelsPending(t *testing.T) {
	sender := &captureSender{}
	e := newTestEngine(sender)

	a := domain.Bot{ID: "a", Symbol: "BTCUSDT", Status: domain.BotStatusActive}
	b := domain.Bot{ID: "b", Symbol: "ETHUSDT", Status: domain.BotStatusActive}

	e.Update([]domain.Bot{a})
	settle()
	require.Len(t, sender.commands(), 1)

	// Changed, then reverted inside the debounce window: no churn.
	e.Update([]domain.Bot{a, b})
	e.Update([]domain.Bot{a})
	settle()
	assert.Len(t, sender.commands(), 1)
}

func TestEmptySetIsSentNotSkipped(t *testing.T) {
	sender := &captureSender{}
	e := newTestEngine(sender)

	e.Update(nil)
	settle()

	cmds := sender.commands()
	require.Len(t, cmds, 1)
	require.NotNil(t, cmds[0].Items)
	assert.Empty(t, cmds[0].Items, "empty visible set must still be announced")
}

func TestResyncReplaysLastSentSet(t *testing.T) {
	sender := &captureSender{}
	e := newTestEngine(sender)

	// Nothing sent yet: nothing to replay.
	e.Resync()
	assert.Empty(t, sender.commands())

	a := domain.Bot{ID: "a", Symbol: "BTCUSDT", Status: domain.BotStatusActive}
	e.Update([]domain.Bot{a})
	settle()
	require.Len(t, sender.commands(), 1)

	e.Resync()
	cmds := sender.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, cmds[0].Items, cmds[1].Items)
}

func TestCloseReleasesAllTickers(t *testing.T) {
	sender := &captureSender{}
	e := newTestEngine(sender)

	a := domain.Bot{ID: "a", Symbol: "BTCUSDT", Status: domain.BotStatusActive}
	e.Update([]domain.Bot{a})
	settle()
	require.Len(t, sender.commands(), 1)

	e.Close()
	cmds := sender.commands()
	require.Len(t, cmds, 2)
	assert.Empty(t, cmds[1].Items)

	// Updates after teardown are ignored.
	e.Update([]domain.Bot{a})
	settle()
	assert.Len(t, sender.commands(), 2)

	// Close is idempotent.
	e.Close()
	assert.Len(t, sender.commands(), 2)
}
