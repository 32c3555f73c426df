package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"botwatch/internal/decay"
	"botwatch/internal/domain"
	"botwatch/internal/reconcile"
	"botwatch/internal/subscribe"
)

// rosterDeps bundles what the roster coordinator drives on each update.
type rosterDeps struct {
	reconciler   *reconcile.Reconciler
	engine       *subscribe.Engine
	tracker      *decay.Tracker
	logger       *slog.Logger
	preferredBot string
	timeframe    string
}

// roster reacts to bot_update events: it refreshes the price subscription
// set, the decay tracker's strategy-bot filter, and the selected bot. The
// selected bot sticks until it leaves the roster or stops; the configured
// bot id wins whenever it is present.
type roster struct {
	rosterDeps
	ctx context.Context

	mu       sync.Mutex
	bots     map[string]domain.Bot
	selected string
}

func newRoster(ctx context.Context, deps rosterDeps) *roster {
	return &roster{
		rosterDeps: deps,
		ctx:        ctx,
		bots:       make(map[string]domain.Bot),
	}
}

func (r *roster) onBotUpdate(raw json.RawMessage) {
	var data domain.BotUpdateData
	if err := json.Unmarshal(raw, &data); err != nil {
		r.logger.Warn("malformed bot update", slog.Any("error", err))
		return
	}
	r.apply(data.Bots)
}

func (r *roster) apply(bots []domain.Bot) {
	r.mu.Lock()
	r.bots = make(map[string]domain.Bot, len(bots))
	strategyIDs := make([]string, 0, len(bots))
	for _, b := range bots {
		r.bots[b.ID] = b
		if b.IsStrategy() {
			strategyIDs = append(strategyIDs, b.ID)
		}
	}
	next, prev := r.pickLocked()
	r.mu.Unlock()

	r.tracker.SetStrategyBots(strategyIDs)
	r.engine.Update(subscribe.Visible(bots))

	if prev != "" {
		r.reconciler.Deselect(prev)
	}
	if next != nil {
		bot := *next
		if r.timeframe != "" {
			bot.Timeframe = r.timeframe
		}
		r.reconciler.Select(r.ctx, bot)
	}
}

// pickLocked decides whether the selection changes. It returns the bot to
// select (nil for no change) and the previous selection to drop (empty for
// none). Caller holds r.mu.
func (r *roster) pickLocked() (next *domain.Bot, prev string) {
	if r.selected != "" {
		if cur, ok := r.bots[r.selected]; ok && cur.Status != domain.BotStatusStopped {
			if r.preferredBot == "" || r.selected == r.preferredBot {
				return nil, ""
			}
			// The configured bot has (re)appeared; switch to it.
			if _, ok := r.bots[r.preferredBot]; !ok {
				return nil, ""
			}
		}
		prev = r.selected
		r.selected = ""
	}

	if b, ok := r.bots[r.preferredBot]; ok && r.preferredBot != "" {
		r.selected = b.ID
		return &b, prev
	}

	// Fall back to the first visible strategy bot, by name for determinism.
	candidates := make([]domain.Bot, 0, len(r.bots))
	for _, b := range r.bots {
		if !b.IsStrategy() {
			continue
		}
		if b.Status != domain.BotStatusActive && b.Status != domain.BotStatusWaiting {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil, prev
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].ID < candidates[j].ID
	})
	r.selected = candidates[0].ID
	return &candidates[0], prev
}
