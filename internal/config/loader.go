package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOTWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOTWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject credentials at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setStr(&cfg.Server.WsURL, "BOTWATCH_SERVER_WS_URL")
	setStr(&cfg.Server.ApiURL, "BOTWATCH_SERVER_API_URL")
	setStr(&cfg.Server.UserID, "BOTWATCH_SERVER_USER_ID")
	setStr(&cfg.Server.Token, "BOTWATCH_SERVER_TOKEN")
	setStr(&cfg.Server.EncryptedTokenPath, "BOTWATCH_SERVER_ENCRYPTED_TOKEN_PATH")
	setStr(&cfg.Server.TokenPassword, "BOTWATCH_SERVER_TOKEN_PASSWORD")

	// ── Stream ──
	setDuration(&cfg.Stream.HeartbeatInterval, "BOTWATCH_STREAM_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Stream.ReconnectDelay, "BOTWATCH_STREAM_RECONNECT_DELAY")

	// ── Subscribe ──
	setDuration(&cfg.Subscribe.Debounce, "BOTWATCH_SUBSCRIBE_DEBOUNCE")
	setStr(&cfg.Subscribe.DefaultVenue, "BOTWATCH_SUBSCRIBE_DEFAULT_VENUE")

	// ── Decay ──
	setInt(&cfg.Decay.GlobalCapacity, "BOTWATCH_DECAY_GLOBAL_CAPACITY")
	setInt(&cfg.Decay.BotCapacity, "BOTWATCH_DECAY_BOT_CAPACITY")
	setInt(&cfg.Decay.DisplayCapacity, "BOTWATCH_DECAY_DISPLAY_CAPACITY")
	setDuration(&cfg.Decay.TTL, "BOTWATCH_DECAY_TTL")
	setDuration(&cfg.Decay.FadeAfter, "BOTWATCH_DECAY_FADE_AFTER")
	setDuration(&cfg.Decay.SweepInterval, "BOTWATCH_DECAY_SWEEP_INTERVAL")

	// ── Monitor ──
	setStr(&cfg.Monitor.BotID, "BOTWATCH_MONITOR_BOT_ID")
	setStr(&cfg.Monitor.Timeframe, "BOTWATCH_MONITOR_TIMEFRAME")
	setInt(&cfg.Monitor.CandleLimit, "BOTWATCH_MONITOR_CANDLE_LIMIT")
	setInt(&cfg.Monitor.SignalLimit, "BOTWATCH_MONITOR_SIGNAL_LIMIT")
	setInt(&cfg.Monitor.ActivityLimit, "BOTWATCH_MONITOR_ACTIVITY_LIMIT")
	setDuration(&cfg.Monitor.RefreshInterval, "BOTWATCH_MONITOR_REFRESH_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "BOTWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
