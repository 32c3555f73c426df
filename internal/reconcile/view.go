package reconcile

import "botwatch/internal/domain"

// ViewState is the lifecycle of one bot view.
type ViewState string

const (
	ViewStateEmpty         ViewState = "empty"
	ViewStateBootstrapping ViewState = "bootstrapping"
	ViewStateLive          ViewState = "live"
)

// View is the reconciled in-memory state for one monitored bot: its candle
// series, trade/signal list, open position slot, and last-known price. Views
// exist only while the bot is selected; nothing is persisted.
type View struct {
	Bot       domain.Bot
	State     ViewState
	Timeframe string
	Candles   []domain.Candle
	Signals   []domain.Signal
	Position  *domain.Position
	LastPrice float64

	// generation tags the bootstrap fetches dispatched for this view so a
	// late result for a superseded selection can be discarded.
	generation uint64

	// snapshotApplied records that an authoritative snapshot has seeded the
	// candle series; a bootstrap fetch resolving afterwards must not clobber
	// it.
	snapshotApplied bool
}

// UnrealizedPnL returns the open PnL and PnL% derived from the position and
// the last-known price. ok is false when there is no open position or no
// price yet.
func (v *View) UnrealizedPnL() (pnl, pct float64, ok bool) {
	if v.Position == nil || v.LastPrice == 0 {
		return 0, 0, false
	}
	return v.Position.UnrealizedPnL(v.LastPrice), v.Position.PnLPercent(v.LastPrice), true
}

// clone returns a deep copy safe to hand to renderers.
func (v *View) clone() View {
	out := *v
	if v.Candles != nil {
		out.Candles = make([]domain.Candle, len(v.Candles))
		copy(out.Candles, v.Candles)
	}
	if v.Signals != nil {
		out.Signals = make([]domain.Signal, len(v.Signals))
		copy(out.Signals, v.Signals)
	}
	if v.Position != nil {
		p := *v.Position
		out.Position = &p
	}
	return out
}
