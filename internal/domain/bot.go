// Package domain defines the core types shared by every botwatch component:
// the bot roster, candle series, trade signals, positions, and the JSON
// message envelopes exchanged with the monitoring server.
package domain

// BotStatus describes the operational state of a monitored bot as reported
// by the server.
type BotStatus string

const (
	BotStatusActive  BotStatus = "active"
	BotStatusWaiting BotStatus = "waiting"
	BotStatusPaused  BotStatus = "paused"
	BotStatusStopped BotStatus = "stopped"
)

// BotSource distinguishes bots driven by our own strategies from bots that
// mirror externally sourced signal feeds.
type BotSource string

const (
	BotSourceStrategy BotSource = "strategy"
	BotSourceExternal BotSource = "external"
)

// Bot is a lightweight roster entry for one monitored trading bot.
type Bot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Symbol     string    `json:"symbol"`
	Venue      string    `json:"venue"`
	MarketType string    `json:"market_type"`
	Timeframe  string    `json:"timeframe"`
	Status     BotStatus `json:"status"`
	Source     BotSource `json:"source"`
}

// IsStrategy reports whether the bot runs one of our own strategies. Bots
// without an explicit source are treated as strategy bots.
func (b Bot) IsStrategy() bool {
	return b.Source == "" || b.Source == BotSourceStrategy
}
