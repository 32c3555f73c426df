package domain

import "encoding/json"

// Inbound event names. Every message from the server is an Envelope whose
// Event field selects one of these.
const (
	EventBotSnapshot     = "bot_snapshot"
	EventBotUpdate       = "bot_update"
	EventCandleUpdate    = "candle_update"
	EventPriceUpdate     = "price_update"
	EventSignalAlert     = "signal_alert"
	EventNewSignal       = "new_signal"
	EventSignalUpdate    = "signal_update"
	EventPositionUpdate  = "position_update"
	EventOperationUpdate = "operation_update"
	EventTelegramLog     = "telegram_log"
)

// Outbound action names.
const (
	ActionPing            = "PING"
	ActionSubscribeBot    = "SUBSCRIBE_BOT"
	ActionUnsubscribeBot  = "UNSUBSCRIBE_BOT"
	ActionPricesSubscribe = "PRICES_SUBSCRIBE"
)

// Envelope is the outer shape of every inbound message. Data is decoded per
// event by the consumer; unknown events are dropped by the stream client.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PingCommand is the heartbeat message. No reply is required to be handled.
type PingCommand struct {
	Action string `json:"action"`
}

// NewPingCommand returns the heartbeat payload.
func NewPingCommand() PingCommand {
	return PingCommand{Action: ActionPing}
}

// BotCommand subscribes to or unsubscribes from the push stream of a single
// bot.
type BotCommand struct {
	Action string `json:"action"`
	BotID  string `json:"bot_id"`
}

// NewSubscribeBot returns a SUBSCRIBE_BOT command for the given bot.
func NewSubscribeBot(botID string) BotCommand {
	return BotCommand{Action: ActionSubscribeBot, BotID: botID}
}

// NewUnsubscribeBot returns an UNSUBSCRIBE_BOT command for the given bot.
func NewUnsubscribeBot(botID string) BotCommand {
	return BotCommand{Action: ActionUnsubscribeBot, BotID: botID}
}

// PricesSubscribeCommand carries the complete desired ticker subscription
// set. It is always a full replacement, never an incremental delta, so an
// empty Items slice releases every subscription.
type PricesSubscribeCommand struct {
	Action string       `json:"action"`
	Items  []TickerItem `json:"items"`
}

// NewPricesSubscribe returns a PRICES_SUBSCRIBE command for the given set.
// A nil set is normalized to an empty list so the server always receives an
// explicit items array.
func NewPricesSubscribe(items []TickerItem) PricesSubscribeCommand {
	if items == nil {
		items = []TickerItem{}
	}
	return PricesSubscribeCommand{Action: ActionPricesSubscribe, Items: items}
}
