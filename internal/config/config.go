// Package config defines the top-level configuration for botwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BOTWATCH_* environment
// variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Stream    StreamConfig    `toml:"stream"`
	Subscribe SubscribeConfig `toml:"subscribe"`
	Decay     DecayConfig     `toml:"decay"`
	Monitor   MonitorConfig   `toml:"monitor"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds the monitoring server endpoints and the session
// credential.
type ServerConfig struct {
	// WsURL is the websocket base endpoint, e.g. "wss://host".
	WsURL string `toml:"ws_url"`

	// ApiURL is the REST bootstrap API root, e.g. "https://host/api".
	ApiURL string `toml:"api_url"`

	// UserID addresses the per-user session channel.
	UserID string `toml:"user_id"`

	// Token is the plaintext API token. Prefer encrypted_token_path so the
	// config file never carries the credential.
	Token string `toml:"token"`

	// EncryptedTokenPath points at a JSON blob produced by the token store.
	EncryptedTokenPath string `toml:"encrypted_token_path"`

	// TokenPassword decrypts the file at EncryptedTokenPath.
	TokenPassword string `toml:"token_password"`
}

// StreamConfig tunes the session channel.
type StreamConfig struct {
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
}

// SubscribeConfig tunes the price subscription engine.
type SubscribeConfig struct {
	Debounce     duration `toml:"debounce"`
	DefaultVenue string   `toml:"default_venue"`
}

// DecayConfig tunes the live-signal decay queues.
type DecayConfig struct {
	GlobalCapacity  int      `toml:"global_capacity"`
	BotCapacity     int      `toml:"bot_capacity"`
	DisplayCapacity int      `toml:"display_capacity"`
	TTL             duration `toml:"ttl"`
	FadeAfter       duration `toml:"fade_after"`
	SweepInterval   duration `toml:"sweep_interval"`
}

// MonitorConfig tunes the per-bot views and the terminal renderer.
type MonitorConfig struct {
	// BotID pre-selects a bot at startup. Empty means the first visible
	// strategy bot from the roster is selected automatically.
	BotID string `toml:"bot_id"`

	// Timeframe overrides the bot's own timeframe when set.
	Timeframe string `toml:"timeframe"`

	CandleLimit   int `toml:"candle_limit"`
	SignalLimit   int `toml:"signal_limit"`
	ActivityLimit int `toml:"activity_limit"`

	// RefreshInterval drives the terminal redraw.
	RefreshInterval duration `toml:"refresh_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			WsURL:  "wss://localhost:8000",
			ApiURL: "https://localhost:8000/api",
		},
		Stream: StreamConfig{
			HeartbeatInterval: duration{20 * time.Second},
			ReconnectDelay:    duration{5 * time.Second},
		},
		Subscribe: SubscribeConfig{
			Debounce:     duration{300 * time.Millisecond},
			DefaultVenue: "BINANCE",
		},
		Decay: DecayConfig{
			GlobalCapacity:  5,
			BotCapacity:     10,
			DisplayCapacity: 5,
			TTL:             duration{5 * time.Second},
			FadeAfter:       duration{4200 * time.Millisecond},
			SweepInterval:   duration{500 * time.Millisecond},
		},
		Monitor: MonitorConfig{
			CandleLimit:     500,
			SignalLimit:     50,
			ActivityLimit:   100,
			RefreshInterval: duration{time.Second},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.WsURL == "" {
		errs = append(errs, "server: ws_url must not be empty")
	}
	if c.Server.ApiURL == "" {
		errs = append(errs, "server: api_url must not be empty")
	}
	if c.Server.UserID == "" {
		errs = append(errs, "server: user_id must not be empty")
	}
	if c.Server.EncryptedTokenPath != "" && c.Server.TokenPassword == "" {
		errs = append(errs, "server: token_password is required when encrypted_token_path is set")
	}

	// Stream
	if c.Stream.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "stream: heartbeat_interval must be > 0")
	}
	if c.Stream.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "stream: reconnect_delay must be > 0")
	}

	// Subscribe
	if c.Subscribe.Debounce.Duration <= 0 {
		errs = append(errs, "subscribe: debounce must be > 0")
	}

	// Decay
	if c.Decay.GlobalCapacity < 1 {
		errs = append(errs, "decay: global_capacity must be >= 1")
	}
	if c.Decay.BotCapacity < 1 {
		errs = append(errs, "decay: bot_capacity must be >= 1")
	}
	if c.Decay.TTL.Duration <= 0 {
		errs = append(errs, "decay: ttl must be > 0")
	}
	if c.Decay.FadeAfter.Duration <= 0 || c.Decay.FadeAfter.Duration >= c.Decay.TTL.Duration {
		errs = append(errs, "decay: fade_after must be > 0 and below ttl")
	}

	// Monitor
	if c.Monitor.CandleLimit < 1 {
		errs = append(errs, "monitor: candle_limit must be >= 1")
	}
	if c.Monitor.SignalLimit < 1 {
		errs = append(errs, "monitor: signal_limit must be >= 1")
	}
	if c.Monitor.RefreshInterval.Duration <= 0 {
		errs = append(errs, "monitor: refresh_interval must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
