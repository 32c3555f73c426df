package domain

// Candle is one OHLC bar. Time is the canonical bucket start in whole
// seconds. Within a view's candle sequence the last element is the forming
// bar and is the only one mutated in place.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// ApplyTick folds an intra-bucket price movement into the bar: the close
// moves to the tick price and the high/low envelope is extended. The open is
// never touched.
func (c *Candle) ApplyTick(price float64) {
	c.Close = price
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
}
