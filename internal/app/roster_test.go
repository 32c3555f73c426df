package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"botwatch/internal/decay"
	"botwatch/internal/domain"
	"botwatch/internal/history"
	"botwatch/internal/reconcile"
	"botwatch/internal/subscribe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	sent []any
}

func (s *captureSender) Send(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, v)
}

func (s *captureSender) botCommands() []domain.BotCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BotCommand
	for _, v := range s.sent {
		if cmd, ok := v.(domain.BotCommand); ok {
			out = append(out, cmd)
		}
	}
	return out
}

func (s *captureSender) priceCommands() []domain.PricesSubscribeCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PricesSubscribeCommand
	for _, v := range s.sent {
		if cmd, ok := v.(domain.PricesSubscribeCommand); ok {
			out = append(out, cmd)
		}
	}
	return out
}

type emptyHistory struct{}

func (emptyHistory) Candles(ctx context.Context, q history.CandleQuery) ([]domain.Candle, error) {
	return nil, nil
}

func (emptyHistory) Signals(ctx context.Context, botID string, limit int) ([]domain.Signal, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRoster(t *testing.T, preferred string) (*roster, *captureSender, *decay.Tracker) {
	t.Helper()
	sender := &captureSender{}
	logger := testLogger()
	tracker := decay.New(decay.Config{}, logger)
	rec := reconcile.New(sender, emptyHistory{}, tracker, reconcile.Config{}, logger)
	engine := subscribe.New(sender, subscribe.Config{Debounce: 10 * time.Millisecond}, logger)
	ros := newRoster(context.Background(), rosterDeps{
		reconciler:   rec,
		engine:       engine,
		tracker:      tracker,
		logger:       logger,
		preferredBot: preferred,
	})
	return ros, sender, tracker
}

func rosterBots() []domain.Bot {
	return []domain.Bot{
		{ID: "b1", Name: "alpha", Symbol: "BTCUSDT", Status: domain.BotStatusActive},
		{ID: "b2", Name: "beta", Symbol: "ETHUSDT", Status: domain.BotStatusWaiting},
		{ID: "b3", Name: "mirror", Symbol: "SOLUSDT", Status: domain.BotStatusActive, Source: domain.BotSourceExternal},
		{ID: "b4", Name: "off", Symbol: "XRPUSDT", Status: domain.BotStatusStopped},
	}
}

func TestRosterSelectsFirstStrategyBot(t *testing.T) {
	ros, sender, _ := newTestRoster(t, "")
	ros.apply(rosterBots())

	cmds := sender.botCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.NewSubscribeBot("b1"), cmds[0], "alpha sorts first among strategy bots")

	// Subscription set covers every visible bot, external ones included.
	require.Eventually(t, func() bool { return len(sender.priceCommands()) == 1 }, time.Second, 5*time.Millisecond)
	items := sender.priceCommands()[0].Items
	require.Len(t, items, 3)
}

func TestRosterPrefersConfiguredBot(t *testing.T) {
	ros, sender, _ := newTestRoster(t, "b2")
	ros.apply(rosterBots())

	cmds := sender.botCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, domain.NewSubscribeBot("b2"), cmds[0])
}

func TestRosterSelectionSticksAcrossUpdates(t *testing.T) {
	ros, sender, _ := newTestRoster(t, "")
	ros.apply(rosterBots())
	ros.apply(rosterBots())

	assert.Len(t, sender.botCommands(), 1, "an unchanged roster must not reselect")
}

func TestRosterReplacesStoppedSelection(t *testing.T) {
	ros, sender, _ := newTestRoster(t, "")
	ros.apply(rosterBots())

	bots := rosterBots()
	bots[0].Status = domain.BotStatusStopped
	ros.apply(bots)

	cmds := sender.botCommands()
	require.Len(t, cmds, 3)
	assert.Equal(t, domain.NewSubscribeBot("b1"), cmds[0])
	assert.Equal(t, domain.NewUnsubscribeBot("b1"), cmds[1])
	assert.Equal(t, domain.NewSubscribeBot("b2"), cmds[2])
}

func TestRosterFeedsStrategyFilter(t *testing.T) {
	ros, _, tracker := newTestRoster(t, "")
	ros.apply(rosterBots())

	tracker.Admit(domain.Signal{ID: "s1", BotID: "b2", Symbol: "ETHUSDT", Side: domain.SideBuy, Timestamp: 10})
	tracker.Admit(domain.Signal{ID: "s2", BotID: "b3", Symbol: "SOLUSDT", Side: domain.SideBuy, Timestamp: 11})

	entries := tracker.Global()
	require.Len(t, entries, 1, "externally sourced bots stay out of the global queue")
	assert.Equal(t, "s1", entries[0].ID)
}
