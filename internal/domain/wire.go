package domain

// Wire shapes for inbound event payloads. Timestamp-valued fields are typed
// `any` because the server mixes second, millisecond, ISO-string, and
// `{"$date": ...}` encodings; consumers normalize them through the timeline
// package before any state is touched.

// WireCandle is one OHLC bar as pushed by the server or returned by the
// history API.
type WireCandle struct {
	Time  any     `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// WireSignal is one trade/signal record as pushed by the server.
type WireSignal struct {
	ID        string  `json:"id"`
	BotID     string  `json:"bot_id"`
	Source    string  `json:"source"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Timestamp any     `json:"timestamp"`
	Status    string  `json:"status"`
	Reasoning string  `json:"reasoning"`
}

// WirePosition is the open-position payload. A nil *WirePosition (or one
// with an empty side) means the position slot is now empty.
type WirePosition struct {
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	Quantity   float64 `json:"quantity"`
}

// SnapshotData is the one-time authoritative bulk push delivered after a
// SUBSCRIBE_BOT.
type SnapshotData struct {
	BotID     string        `json:"bot_id"`
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	Candles   []WireCandle  `json:"candles"`
	Signals   []WireSignal  `json:"signals"`
	Position  *WirePosition `json:"position"`
}

// BotUpdateData refreshes the bot roster.
type BotUpdateData struct {
	Bots []Bot `json:"bots"`
}

// CandleUpdateData carries a forming or newly opened candle for one bot.
type CandleUpdateData struct {
	BotID  string     `json:"bot_id"`
	Symbol string     `json:"symbol"`
	Candle WireCandle `json:"candle"`
}

// PriceUpdateData is an intra-bucket price tick for a subscribed ticker.
type PriceUpdateData struct {
	BotID  string  `json:"bot_id"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Time   any     `json:"time"`
}

// PositionUpdateData replaces a bot's position slot wholesale.
type PositionUpdateData struct {
	BotID    string        `json:"bot_id"`
	Position *WirePosition `json:"position"`
}

// TelegramLogData is one line of the bot fleet's telegram activity feed.
type TelegramLogData struct {
	BotID   string `json:"bot_id"`
	Message string `json:"message"`
	Time    any    `json:"time"`
}
