// Package app provides the top-level application lifecycle for botwatch. It
// wires the session channel, the REST bootstrap client, the reconciler, the
// subscription engine, the decay tracker, and the terminal renderer, and
// keeps them running until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"botwatch/internal/config"
	"botwatch/internal/crypto"
	"botwatch/internal/decay"
	"botwatch/internal/domain"
	"botwatch/internal/history"
	"botwatch/internal/reconcile"
	"botwatch/internal/render"
	"botwatch/internal/stream"
	"botwatch/internal/subscribe"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, opens the session channel, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting botwatch",
		slog.String("ws_url", a.cfg.Server.WsURL),
		slog.String("log_level", a.cfg.LogLevel),
	)

	token, err := crypto.LoadToken(crypto.TokenConfig{
		RawToken:           a.cfg.Server.Token,
		EncryptedTokenPath: a.cfg.Server.EncryptedTokenPath,
		TokenPassword:      a.cfg.Server.TokenPassword,
	})
	if err != nil {
		return fmt.Errorf("app: resolve token: %w", err)
	}

	histClient := history.New(a.cfg.Server.ApiURL, token)

	streamClient := stream.New(stream.Config{
		URL:               a.cfg.Server.WsURL,
		UserID:            a.cfg.Server.UserID,
		Token:             token,
		HeartbeatInterval: a.cfg.Stream.HeartbeatInterval.Duration,
		ReconnectDelay:    a.cfg.Stream.ReconnectDelay.Duration,
	}, a.logger)
	a.closers = append(a.closers, func() { _ = streamClient.Close() })

	tracker := decay.New(decay.Config{
		GlobalCapacity:  a.cfg.Decay.GlobalCapacity,
		BotCapacity:     a.cfg.Decay.BotCapacity,
		DisplayCapacity: a.cfg.Decay.DisplayCapacity,
		TTL:             a.cfg.Decay.TTL.Duration,
		FadeAfter:       a.cfg.Decay.FadeAfter.Duration,
		SweepInterval:   a.cfg.Decay.SweepInterval.Duration,
	}, a.logger)

	reconciler := reconcile.New(streamClient, histClient, tracker, reconcile.Config{
		CandleLimit:   a.cfg.Monitor.CandleLimit,
		SignalLimit:   a.cfg.Monitor.SignalLimit,
		ActivityLimit: a.cfg.Monitor.ActivityLimit,
		Venue:         a.cfg.Subscribe.DefaultVenue,
	}, a.logger)
	reconciler.Attach(streamClient)

	engine := subscribe.New(streamClient, subscribe.Config{
		Debounce:     a.cfg.Subscribe.Debounce.Duration,
		DefaultVenue: a.cfg.Subscribe.DefaultVenue,
	}, a.logger)
	a.closers = append(a.closers, engine.Close)

	ros := newRoster(ctx, rosterDeps{
		reconciler:   reconciler,
		engine:       engine,
		tracker:      tracker,
		logger:       a.logger,
		preferredBot: a.cfg.Monitor.BotID,
		timeframe:    a.cfg.Monitor.Timeframe,
	})
	streamClient.On(domain.EventBotUpdate, ros.onBotUpdate)

	// The server answers a fresh connection with nothing until asked; replay
	// the bot and ticker subscriptions after every (re)connect.
	streamClient.OnConnect(reconciler.Resubscribe)
	streamClient.OnConnect(engine.Resync)

	if err := streamClient.Connect(ctx); err != nil {
		// The reconnect loop is not responsible for the first dial; surface
		// the failure and let the operator fix the endpoint.
		return fmt.Errorf("app: open session channel: %w", err)
	}

	renderer := render.New(os.Stdout, reconciler, tracker, streamClient, render.Config{
		RefreshInterval: a.cfg.Monitor.RefreshInterval.Duration,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tracker.Run(ctx) })
	g.Go(func() error { return renderer.Run(ctx) })
	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down botwatch")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
