package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"botwatch/internal/decay"
	"botwatch/internal/domain"
	"botwatch/internal/history"
	"botwatch/internal/stream"
	"botwatch/internal/timeline"
)

// HistoryAPI is the slice of the REST bootstrap client the reconciler needs.
type HistoryAPI interface {
	Candles(ctx context.Context, q history.CandleQuery) ([]domain.Candle, error)
	Signals(ctx context.Context, botID string, limit int) ([]domain.Signal, error)
}

// Sender delivers outbound commands on the session channel.
type Sender interface {
	Send(v any)
}

// Bus registers listeners for inbound events.
type Bus interface {
	On(event string, fn stream.Listener)
}

// Config bounds the per-view collections.
type Config struct {
	// CandleLimit caps the bootstrap candle fetch.
	CandleLimit int

	// SignalLimit caps each view's signal list.
	SignalLimit int

	// ActivityLimit caps the telegram activity ring.
	ActivityLimit int

	// Venue is the default venue for bootstrap queries when a bot carries
	// none.
	Venue string
}

const (
	defaultCandleLimit   = 500
	defaultSignalLimit   = 50
	defaultActivityLimit = 100
	defaultTimeframe     = "1m"
)

func (c Config) withDefaults() Config {
	if c.CandleLimit <= 0 {
		c.CandleLimit = defaultCandleLimit
	}
	if c.SignalLimit <= 0 {
		c.SignalLimit = defaultSignalLimit
	}
	if c.ActivityLimit <= 0 {
		c.ActivityLimit = defaultActivityLimit
	}
	if c.Venue == "" {
		c.Venue = domain.DefaultVenue
	}
	return c
}

// ActivityEntry is one line of the fleet's telegram activity feed.
type ActivityEntry struct {
	BotID   string
	Message string
	Time    int64
}

// Reconciler merges the one-time snapshot, the REST bootstrap fetches, and
// the incremental push stream into one consistent view per selected bot.
// Event handlers run on the stream's read loop, so per-view arrival order is
// preserved.
type Reconciler struct {
	sender  Sender
	history HistoryAPI
	tracker *decay.Tracker
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	views    map[string]*View
	gen      uint64
	activity []ActivityEntry
}

// New creates a reconciler. tracker may be nil when no decay queues are
// wanted.
func New(sender Sender, h HistoryAPI, tracker *decay.Tracker, cfg Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		sender:  sender,
		history: h,
		tracker: tracker,
		cfg:     cfg.withDefaults(),
		logger:  logger.With(slog.String("component", "reconcile")),
		views:   make(map[string]*View),
	}
}

// Attach registers the reconciler's event handlers on the session channel.
func (r *Reconciler) Attach(bus Bus) {
	bus.On(domain.EventBotSnapshot, r.onSnapshot)
	bus.On(domain.EventCandleUpdate, r.onCandleUpdate)
	bus.On(domain.EventPriceUpdate, r.onPriceUpdate)
	bus.On(domain.EventSignalAlert, r.onSignal)
	bus.On(domain.EventNewSignal, r.onSignal)
	bus.On(domain.EventSignalUpdate, r.onSignal)
	bus.On(domain.EventPositionUpdate, r.onPosition)
	bus.On(domain.EventOperationUpdate, r.onPosition)
	bus.On(domain.EventTelegramLog, r.onTelegramLog)
}

// Select makes bot a monitored bot: it resets any existing view, subscribes
// to the bot's push stream, and kicks off the parallel REST bootstrap. The
// snapshot and the fetches race freely; generation tags and the
// snapshotApplied guard keep late losers from clobbering fresher data.
func (r *Reconciler) Select(ctx context.Context, bot domain.Bot) {
	tf := bot.Timeframe
	if tf == "" {
		tf = defaultTimeframe
	}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.views[bot.ID] = &View{
		Bot:        bot,
		State:      ViewStateBootstrapping,
		Timeframe:  tf,
		generation: gen,
	}
	r.mu.Unlock()

	if r.tracker != nil {
		r.tracker.SetSelectedBot(bot.ID)
	}
	r.sender.Send(domain.NewSubscribeBot(bot.ID))
	r.logger.Info("bot selected", slog.String("bot_id", bot.ID), slog.String("symbol", bot.Symbol))

	go r.bootstrap(ctx, bot, tf, gen)
}

// Deselect drops the bot's view and releases its push stream.
func (r *Reconciler) Deselect(botID string) {
	r.mu.Lock()
	_, ok := r.views[botID]
	delete(r.views, botID)
	r.mu.Unlock()
	if !ok {
		return
	}

	if r.tracker != nil {
		r.tracker.ClearSelectedBot(botID)
	}
	r.sender.Send(domain.NewUnsubscribeBot(botID))
	r.logger.Info("bot deselected", slog.String("bot_id", botID))
}

// Resubscribe replays SUBSCRIBE_BOT for every live view. Call after a
// channel reconnect; the server re-answers each with a fresh snapshot.
func (r *Reconciler) Resubscribe() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		r.sender.Send(domain.NewSubscribeBot(id))
	}
}

// bootstrap runs the candle and signal fetches concurrently. Each result is
// applied as soon as it lands; a failed fetch is logged and the view stays
// keyed on push data alone.
func (r *Reconciler) bootstrap(ctx context.Context, bot domain.Bot, tf string, gen uint64) {
	venue := bot.Venue
	if venue == "" {
		venue = r.cfg.Venue
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		candles, err := r.history.Candles(ctx, history.CandleQuery{
			Symbol:     bot.Symbol,
			Timeframe:  tf,
			Venue:      venue,
			MarketType: bot.MarketType,
			Limit:      r.cfg.CandleLimit,
		})
		if err != nil {
			r.logger.Warn("candle bootstrap failed", slog.String("bot_id", bot.ID), slog.Any("error", err))
			return nil
		}
		r.applyBootstrapCandles(bot.ID, gen, candles)
		return nil
	})

	g.Go(func() error {
		signals, err := r.history.Signals(ctx, bot.ID, r.cfg.SignalLimit)
		if err != nil {
			r.logger.Warn("signal bootstrap failed", slog.String("bot_id", bot.ID), slog.Any("error", err))
			return nil
		}
		r.applyBootstrapSignals(bot.ID, gen, signals)
		return nil
	})

	_ = g.Wait()
	r.finishBootstrap(bot.ID, gen)
}

func (r *Reconciler) applyBootstrapCandles(botID string, gen uint64, candles []domain.Candle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.currentLocked(botID, gen)
	if err != nil {
		r.logger.Debug("candle bootstrap discarded", slog.String("bot_id", botID), slog.Any("error", err))
		return
	}
	if v.snapshotApplied || len(candles) == 0 {
		return
	}
	v.Candles = candles
}

func (r *Reconciler) applyBootstrapSignals(botID string, gen uint64, signals []domain.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.currentLocked(botID, gen)
	if err != nil {
		r.logger.Debug("signal bootstrap discarded", slog.String("bot_id", botID), slog.Any("error", err))
		return
	}
	for i := len(signals) - 1; i >= 0; i-- {
		s := signals[i]
		s.BucketTime = timeline.Bucket(s.Timestamp, v.Timeframe)
		r.upsertSignalLocked(v, s)
	}
}

func (r *Reconciler) finishBootstrap(botID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.currentLocked(botID, gen)
	if err != nil {
		return
	}
	if v.State == ViewStateBootstrapping {
		v.State = ViewStateLive
	}
}

// currentLocked returns the view for botID iff it still belongs to the given
// bootstrap generation. Caller holds r.mu.
func (r *Reconciler) currentLocked(botID string, gen uint64) (*View, error) {
	v, ok := r.views[botID]
	if !ok {
		return nil, fmt.Errorf("reconcile: bot %s: %w", botID, domain.ErrNoView)
	}
	if v.generation != gen {
		return nil, fmt.Errorf("reconcile: bot %s generation %d superseded: %w", botID, gen, domain.ErrStaleResult)
	}
	return v, nil
}

// HandleSnapshot applies the authoritative one-time snapshot. A snapshot
// with a non-empty candle array replaces the series wholesale; an empty one
// preserves whatever the bootstrap fetch produced.
func (r *Reconciler) HandleSnapshot(data domain.SnapshotData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[data.BotID]
	if !ok {
		return
	}

	if data.Timeframe != "" {
		v.Timeframe = data.Timeframe
	}
	if candles := domain.NormalizeCandles(data.Candles); len(candles) > 0 {
		v.Candles = candles
	}
	v.snapshotApplied = true

	// NormalizeSignals returns most-recent-first; upsert oldest-first so
	// prepending keeps the view list most-recent-first too.
	sigs := domain.NormalizeSignals(data.Signals, r.cfg.SignalLimit)
	for i := len(sigs) - 1; i >= 0; i-- {
		s := sigs[i]
		s.BucketTime = timeline.Bucket(s.Timestamp, v.Timeframe)
		r.upsertSignalLocked(v, s)
	}
	if data.Position != nil {
		v.Position = data.Position.Normalize()
	}
	v.State = ViewStateLive
}

// HandleCandleUpdate applies a forming or newly opened candle. The incoming
// time key is compared against the last candle in the series: equal replaces
// the forming candle in place, greater opens a new one, smaller is a stale
// echo and is ignored. The series never loses its ascending order.
func (r *Reconciler) HandleCandleUpdate(data domain.CandleUpdateData) {
	c, err := data.Candle.Normalize()
	if err != nil {
		r.logger.Warn("candle update dropped", slog.String("bot_id", data.BotID), slog.Any("error", err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[data.BotID]
	if !ok {
		return
	}
	if data.Symbol != "" && v.Bot.Symbol != "" && data.Symbol != v.Bot.Symbol {
		return
	}

	if len(v.Candles) == 0 {
		v.Candles = append(v.Candles, c)
		return
	}
	last := &v.Candles[len(v.Candles)-1]
	switch {
	case c.Time == last.Time:
		*last = c
	case c.Time > last.Time:
		v.Candles = append(v.Candles, c)
	}
}

// HandlePriceUpdate folds an intra-bucket price tick into every view whose
// bot it addresses. The tick moves the forming candle's close and extends
// its high/low; the open never moves.
func (r *Reconciler) HandlePriceUpdate(data domain.PriceUpdateData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.views {
		if data.BotID != "" && data.BotID != v.Bot.ID {
			continue
		}
		if data.BotID == "" && data.Symbol != v.Bot.Symbol {
			continue
		}
		v.LastPrice = data.Price
		if len(v.Candles) > 0 {
			v.Candles[len(v.Candles)-1].ApplyTick(data.Price)
		}
	}
}

// HandleSignal applies one inbound signal event. Within the owning view the
// signal is upserted by identity, so a status transition mutates the
// existing entry instead of duplicating it. The decay tracker is fed
// regardless of whether any view owns the signal.
func (r *Reconciler) HandleSignal(w domain.WireSignal) {
	sig, err := w.Normalize()
	if err != nil {
		r.logger.Warn("signal dropped", slog.String("signal_id", w.ID), slog.Any("error", err))
		return
	}

	r.mu.Lock()
	if v, ok := r.views[sig.BotID]; ok {
		sig.BucketTime = timeline.Bucket(sig.Timestamp, v.Timeframe)
		r.upsertSignalLocked(v, sig)
	} else {
		sig.BucketTime = timeline.Bucket(sig.Timestamp, defaultTimeframe)
	}
	r.mu.Unlock()

	if r.tracker != nil {
		r.tracker.Admit(sig)
	}
}

// upsertSignalLocked replaces the entry with the same identity in place, or
// prepends when the identity is new, keeping the list most-recent-first and
// within the configured cap. Caller holds r.mu.
func (r *Reconciler) upsertSignalLocked(v *View, sig domain.Signal) {
	id := sig.Identity()
	for i := range v.Signals {
		if v.Signals[i].Identity() == id {
			v.Signals[i] = sig
			return
		}
	}
	v.Signals = append([]domain.Signal{sig}, v.Signals...)
	if len(v.Signals) > r.cfg.SignalLimit {
		v.Signals = v.Signals[:r.cfg.SignalLimit]
	}
}

// HandlePosition replaces the bot's position slot wholesale. A payload with
// no recognizable side clears the slot.
func (r *Reconciler) HandlePosition(data domain.PositionUpdateData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[data.BotID]
	if !ok {
		return
	}
	v.Position = data.Position.Normalize()
}

// HandleTelegramLog appends one line to the bounded activity ring.
func (r *Reconciler) HandleTelegramLog(data domain.TelegramLogData) {
	ts, err := timeline.ToSeconds(data.Time)
	if err != nil {
		ts = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity = append(r.activity, ActivityEntry{BotID: data.BotID, Message: data.Message, Time: ts})
	if len(r.activity) > r.cfg.ActivityLimit {
		r.activity = r.activity[len(r.activity)-r.cfg.ActivityLimit:]
	}
}

// View returns a deep copy of the bot's view.
func (r *Reconciler) View(botID string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[botID]
	if !ok {
		return View{}, false
	}
	return v.clone(), true
}

// Views returns deep copies of every live view, ordered by bot id.
func (r *Reconciler) Views() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]View, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bot.ID < out[j].Bot.ID })
	return out
}

// Activity returns the telegram activity ring, newest entry last.
func (r *Reconciler) Activity() []ActivityEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityEntry, len(r.activity))
	copy(out, r.activity)
	return out
}

func (r *Reconciler) onSnapshot(raw json.RawMessage) {
	var data domain.SnapshotData
	if err := json.Unmarshal(raw, &data); err != nil {
		r.logger.Warn("malformed snapshot", slog.Any("error", err))
		return
	}
	r.HandleSnapshot(data)
}

func (r *Reconciler) onCandleUpdate(raw json.RawMessage) {
	var data domain.CandleUpdateData
	if err := json.Unmarshal(raw, &data); err != nil {
		r.logger.Warn("malformed candle update", slog.Any("error", err))
		return
	}
	r.HandleCandleUpdate(data)
}

func (r *Reconciler) onPriceUpdate(raw json.RawMessage) {
	var data domain.PriceUpdateData
	if err := json.Unmarshal(raw, &data); err != nil {
		r.logger.Warn("malformed price update", slog.Any("error", err))
		return
	}
	r.HandlePriceUpdate(data)
}

func (r *Reconciler) onSignal(raw json.RawMessage) {
	var w domain.WireSignal
	if err := json.Unmarshal(raw, &w); err != nil {
		r.logger.Warn("malformed signal", slog.Any("error", err))
		return
	}
	r.HandleSignal(w)
}

func (r *Reconciler) onPosition(raw json.RawMessage) {
	var data domain.PositionUpdateData
	if err := json.Unmarshal(raw, &data); err != nil {
		r.logger.Warn("malformed position update", slog.Any("error", err))
		return
	}
	r.HandlePosition(data)
}

func (r *Reconciler) onTelegramLog(raw json.RawMessage) {
	var data domain.TelegramLogData
	if err := json.Unmarshal(raw, &data); err != nil {
		r.logger.Warn("malformed telegram log", slog.Any("error", err))
		return
	}
	r.HandleTelegramLog(data)
}
