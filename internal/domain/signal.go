package domain

import "fmt"

// Side is an opaque BUY/SELL tag; botwatch renders it but attaches no
// business meaning.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal is one trade/signal record for a bot. Timestamp is canonical whole
// seconds; BucketTime is the start of the candle bucket the signal marker
// belongs to for the view's timeframe (filled in at ingestion).
type Signal struct {
	ID         string  `json:"id"`
	BotID      string  `json:"bot_id"`
	Source     string  `json:"source"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Price      float64 `json:"price"`
	Timestamp  int64   `json:"timestamp"`
	BucketTime int64   `json:"bucket_time,omitempty"`
	Status     string  `json:"status"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Identity returns the dedup key for the signal: the server-assigned id when
// present, otherwise a best-effort composite of symbol, side, and timestamp.
func (s Signal) Identity() string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("%s|%s|%d", s.Symbol, s.Side, s.Timestamp)
}
