// Package decay maintains the bounded, TTL-decayed queues of "live" signals
// shown to the operator: a global queue fed by every known strategy bot and
// a recent queue for the currently selected bot. Entries fade shortly before
// expiry so imminent removal is visible, then disappear at the hard TTL.
package decay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"botwatch/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultGlobalCapacity  = 5
	DefaultBotCapacity     = 10
	DefaultDisplayCapacity = 5

	// DefaultTTL is the hard cutoff after which an entry is hidden.
	DefaultTTL = 5000 * time.Millisecond

	// DefaultFadeAfter is when the visual fade begins, ahead of the TTL.
	DefaultFadeAfter = 4200 * time.Millisecond

	// DefaultSweepInterval drives age recomputation.
	DefaultSweepInterval = 500 * time.Millisecond
)

// Entry is one live signal in a decay queue.
type Entry struct {
	ID        string
	ArrivedAt time.Time
	Fading    bool
	Signal    domain.Signal
}

// Config tunes the tracker; zero values take the defaults above.
type Config struct {
	GlobalCapacity  int
	BotCapacity     int
	DisplayCapacity int
	TTL             time.Duration
	FadeAfter       time.Duration
	SweepInterval   time.Duration
}

// Tracker owns both queues. It is fed by the reconciler on every signal
// event, independently of whether the signal's bot is selected.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	// now is swappable for deterministic expiry tests.
	now func() time.Time

	mu           sync.Mutex
	global       queue
	bot          queue
	selectedBot  string
	strategyBots map[string]struct{}
}

// New creates a tracker with the given tuning.
func New(cfg Config, logger *slog.Logger) *Tracker {
	if cfg.GlobalCapacity <= 0 {
		cfg.GlobalCapacity = DefaultGlobalCapacity
	}
	if cfg.BotCapacity <= 0 {
		cfg.BotCapacity = DefaultBotCapacity
	}
	if cfg.DisplayCapacity <= 0 {
		cfg.DisplayCapacity = DefaultDisplayCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FadeAfter <= 0 || cfg.FadeAfter >= cfg.TTL {
		cfg.FadeAfter = DefaultFadeAfter
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Tracker{
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "decay")),
		now:          time.Now,
		global:       queue{capacity: cfg.GlobalCapacity},
		bot:          queue{capacity: cfg.BotCapacity},
		strategyBots: make(map[string]struct{}),
	}
}

// SetStrategyBots replaces the set of bot ids whose signals are admitted to
// the global queue. Externally sourced feeds stay excluded by never being
// registered here.
func (t *Tracker) SetStrategyBots(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategyBots = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		t.strategyBots[id] = struct{}{}
	}
}

// SetSelectedBot switches the per-bot queue to the given bot, discarding the
// previous bot's entries. An empty id clears the queue.
func (t *Tracker) SetSelectedBot(botID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selectedBot == botID {
		return
	}
	t.selectedBot = botID
	t.bot.entries = nil
}

// ClearSelectedBot clears the per-bot queue, but only if botID is still the
// selected bot. Deselecting a bot that was already superseded is a no-op.
func (t *Tracker) ClearSelectedBot(botID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selectedBot != botID {
		return
	}
	t.selectedBot = ""
	t.bot.entries = nil
}

// Admit records a signal arrival. The entry is upserted by identity, so a
// reappearing id (a status transition of the same signal) replaces its
// previous entry in place and restarts its decay clock.
func (t *Tracker) Admit(sig domain.Signal) {
	id := sig.Identity()
	if id == "" {
		id = uuid.New().String()
	}
	entry := Entry{ID: id, ArrivedAt: t.now(), Signal: sig}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.strategyBots[sig.BotID]; ok {
		t.global.upsert(entry)
	}
	if t.selectedBot != "" && sig.BotID == t.selectedBot {
		t.bot.upsert(entry)
	}
}

// Global returns the visible global entries, most recent first, with Fading
// set for entries inside the fade window.
func (t *Tracker) Global() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global.visible(t.now(), t.cfg.TTL, t.cfg.FadeAfter, t.cfg.GlobalCapacity)
}

// Selected returns the visible entries for the selected bot, most recent
// first, capped at the display capacity.
func (t *Tracker) Selected() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bot.visible(t.now(), t.cfg.TTL, t.cfg.FadeAfter, t.cfg.DisplayCapacity)
}

// Sweep drops every entry whose age has passed the TTL.
func (t *Tracker) Sweep() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.global.prune(now, t.cfg.TTL)
	t.bot.prune(now, t.cfg.TTL)
}

// Run sweeps at the configured interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// queue is a bounded slice of entries, most-recent-last.
type queue struct {
	capacity int
	entries  []Entry
}

// upsert replaces an existing entry with the same id in place, otherwise
// appends, then truncates the oldest entries down to capacity.
func (q *queue) upsert(e Entry) {
	for i := range q.entries {
		if q.entries[i].ID == e.ID {
			q.entries[i] = e
			return
		}
	}
	q.entries = append(q.entries, e)
	if overflow := len(q.entries) - q.capacity; overflow > 0 {
		q.entries = q.entries[overflow:]
	}
}

// visible returns up to limit non-expired entries, newest first, marking
// those inside the fade window.
func (q *queue) visible(now time.Time, ttl, fadeAfter time.Duration, limit int) []Entry {
	out := make([]Entry, 0, limit)
	for i := len(q.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := q.entries[i]
		age := now.Sub(e.ArrivedAt)
		if age >= ttl {
			continue
		}
		e.Fading = age >= fadeAfter
		out = append(out, e)
	}
	return out
}

// prune removes expired entries.
func (q *queue) prune(now time.Time, ttl time.Duration) {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if now.Sub(e.ArrivedAt) < ttl {
			kept = append(kept, e)
		}
	}
	q.entries = kept
}
