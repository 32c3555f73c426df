// Package render draws the operator terminal: one table of monitored bot
// views, the live signal queues, and the tail of the fleet's activity feed.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"botwatch/internal/decay"
	"botwatch/internal/domain"
	"botwatch/internal/reconcile"
)

// ViewSource provides the reconciled bot views and the activity feed.
type ViewSource interface {
	Views() []reconcile.View
	Activity() []reconcile.ActivityEntry
}

// SignalSource provides the decayed live-signal queues.
type SignalSource interface {
	Global() []decay.Entry
	Selected() []decay.Entry
}

// StatusSource reports the session channel state.
type StatusSource interface {
	IsConnected() bool
}

// Config tunes the renderer.
type Config struct {
	// RefreshInterval drives the redraw loop.
	RefreshInterval time.Duration

	// ActivityTail limits how many activity lines each frame shows.
	ActivityTail int
}

const (
	defaultRefreshInterval = time.Second
	defaultActivityTail    = 8
)

// Renderer periodically writes a text frame of the whole monitoring state.
type Renderer struct {
	out     io.Writer
	views   ViewSource
	signals SignalSource
	status  StatusSource
	cfg     Config
	now     func() time.Time
}

// New creates a renderer writing frames to out.
func New(out io.Writer, views ViewSource, signals SignalSource, status StatusSource, cfg Config) *Renderer {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.ActivityTail <= 0 {
		cfg.ActivityTail = defaultActivityTail
	}
	return &Renderer{
		out:     out,
		views:   views,
		signals: signals,
		status:  status,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run redraws until ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprint(r.out, r.Frame())
		}
	}
}

// Frame builds one complete text frame.
func (r *Renderer) Frame() string {
	var b strings.Builder

	status := "DISCONNECTED"
	if r.status != nil && r.status.IsConnected() {
		status = "LIVE"
	}
	fmt.Fprintf(&b, "botwatch  %s  %s\n\n", status, r.now().UTC().Format("15:04:05"))

	r.writeViews(&b)
	r.writeSignals(&b)
	r.writeActivity(&b)

	return b.String()
}

func (r *Renderer) writeViews(b *strings.Builder) {
	views := r.views.Views()

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Bot", "Symbol", "TF", "State", "Price", "Candles", "Position", "PnL"})
	for _, v := range views {
		t.AppendRow(table.Row{
			v.Bot.Name,
			v.Bot.Symbol,
			v.Timeframe,
			v.State,
			formatPrice(v.LastPrice),
			len(v.Candles),
			formatPosition(v.Position),
			formatPnL(&v),
		})
	}
	b.WriteString(t.Render())
	b.WriteString("\n\n")
}

func (r *Renderer) writeSignals(b *strings.Builder) {
	if r.signals == nil {
		return
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Queue", "Side", "Symbol", "Price", "Status", "Age"})
	now := r.now()
	for _, e := range r.signals.Global() {
		t.AppendRow(signalRow("global", e, now))
	}
	for _, e := range r.signals.Selected() {
		t.AppendRow(signalRow("bot", e, now))
	}
	b.WriteString(t.Render())
	b.WriteString("\n\n")
}

func signalRow(queue string, e decay.Entry, now time.Time) table.Row {
	side := string(e.Signal.Side)
	if e.Fading {
		side = text.Faint.Sprint(side)
	}
	age := now.Sub(e.ArrivedAt).Truncate(100 * time.Millisecond)
	return table.Row{queue, side, e.Signal.Symbol, formatPrice(e.Signal.Price), e.Signal.Status, age.String()}
}

func (r *Renderer) writeActivity(b *strings.Builder) {
	entries := r.views.Activity()
	if len(entries) > r.cfg.ActivityTail {
		entries = entries[len(entries)-r.cfg.ActivityTail:]
	}
	for _, e := range entries {
		ts := ""
		if e.Time > 0 {
			ts = time.Unix(e.Time, 0).UTC().Format("15:04:05") + " "
		}
		fmt.Fprintf(b, "%s[%s] %s\n", ts, e.BotID, e.Message)
	}
}

func formatPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.8g", p)
}

func formatPosition(p *domain.Position) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%s %.8g @ %.8g", p.Side, p.Quantity, p.EntryPrice)
}

func formatPnL(v *reconcile.View) string {
	pnl, pct, ok := v.UnrealizedPnL()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%+.4f (%+.2f%%)", pnl, pct)
}
