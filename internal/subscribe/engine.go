// Package subscribe computes the minimal ticker subscription set implied by
// the currently visible bots and keeps the server in sync with it. The
// protocol is full-replace: every SUBSCRIBE carries the complete desired
// set, and the empty set releases everything.
package subscribe

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"botwatch/internal/domain"
)

const (
	// DefaultDebounce is how long the engine waits for the visible-bot set
	// to settle before sending a changed subscription.
	DefaultDebounce = 300 * time.Millisecond

	// DefaultVenue is assumed for bots that carry no venue.
	DefaultVenue = domain.DefaultVenue

	// unsentKey is the sentinel for "nothing sent yet". It can never equal a
	// real set key, so the first Update always sends, even when the set is
	// empty and the server needs it to release stale subscriptions.
	unsentKey = "\x00unsent"
)

// Sender delivers an outbound control message; delivery is best-effort.
type Sender interface {
	Send(v any)
}

// Config tunes the engine. Zero values take the defaults above.
type Config struct {
	Debounce     time.Duration
	DefaultVenue string
}

// Engine owns the subscription set. All mutations flow through the single
// diff-and-send path: Update from bot-list changes, Close on teardown.
type Engine struct {
	sender       Sender
	logger       *slog.Logger
	debounce     time.Duration
	defaultVenue string

	mu            sync.Mutex
	lastSentKey   string
	lastSentItems []domain.TickerItem
	pendingKey    string
	pendingItems  []domain.TickerItem
	timer         *time.Timer
	closed        bool
}

// New creates an engine that sends PRICES_SUBSCRIBE messages through sender.
func New(sender Sender, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.DefaultVenue == "" {
		cfg.DefaultVenue = DefaultVenue
	}
	return &Engine{
		sender:       sender,
		logger:       logger.With(slog.String("component", "subscribe")),
		debounce:     cfg.Debounce,
		defaultVenue: cfg.DefaultVenue,
		lastSentKey:  unsentKey,
	}
}

// Update recomputes the desired ticker set from the visible bots and, if it
// differs from the last-sent set, schedules a debounced full-replace send.
// Re-renders that resolve to the same semantic set are no-ops.
func (e *Engine) Update(visible []domain.Bot) {
	items := Tickers(visible, e.defaultVenue)
	key := SetKey(items)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if key == e.lastSentKey {
		// Back to what the server already has; drop any pending change.
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		return
	}

	e.pendingKey = key
	e.pendingItems = items
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.flush)
}

// Resync replays the last-sent set immediately. Call after a channel
// reconnect, when the server side has forgotten every subscription.
func (e *Engine) Resync() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.lastSentKey == unsentKey {
		return
	}
	e.sender.Send(domain.NewPricesSubscribe(e.lastSentItems))
	e.logger.Info("subscription set resynced", slog.Int("tickers", len(e.lastSentItems)))
}

// Close releases every subscription by sending an explicit empty set, then
// refuses further updates.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.sender.Send(domain.NewPricesSubscribe(nil))
	e.lastSentKey = ""
}

// flush sends the pending set after the debounce interval has settled.
func (e *Engine) flush() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.timer = nil
	if e.pendingKey == e.lastSentKey {
		return
	}
	e.sender.Send(domain.NewPricesSubscribe(e.pendingItems))
	e.lastSentKey = e.pendingKey
	e.lastSentItems = e.pendingItems
	e.logger.Info("subscription set replaced", slog.Int("tickers", len(e.pendingItems)))
}

// Visible filters the roster down to the bots whose tickers should be
// subscribed. With no statuses given it keeps active and waiting bots.
func Visible(bots []domain.Bot, statuses ...domain.BotStatus) []domain.Bot {
	if len(statuses) == 0 {
		statuses = []domain.BotStatus{domain.BotStatusActive, domain.BotStatusWaiting}
	}
	keep := make(map[domain.BotStatus]struct{}, len(statuses))
	for _, s := range statuses {
		keep[s] = struct{}{}
	}
	out := make([]domain.Bot, 0, len(bots))
	for _, b := range bots {
		if _, ok := keep[b.Status]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Tickers maps bots onto their normalized, deduplicated, deterministically
// sorted ticker tuples. Missing venues default, market-type aliases are
// canonicalized, and the dedup key is case-insensitive on venue.
func Tickers(bots []domain.Bot, defaultVenue string) []domain.TickerItem {
	seen := make(map[string]struct{}, len(bots))
	items := make([]domain.TickerItem, 0, len(bots))

	for _, b := range bots {
		symbol := strings.ToUpper(strings.TrimSpace(b.Symbol))
		if symbol == "" {
			continue
		}
		venue := strings.TrimSpace(b.Venue)
		if venue == "" {
			venue = defaultVenue
		}
		item := domain.TickerItem{
			ExchangeID: venue,
			MarketType: domain.CanonicalMarketType(b.MarketType),
			Symbol:     symbol,
		}
		k := item.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Key() < items[j].Key() })
	return items
}

// SetKey returns the canonical comparison key for a whole ticker set.
func SetKey(items []domain.TickerItem) string {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key()
	}
	return strings.Join(keys, ";")
}
