package domain

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Position is the single open position a bot may hold. Derived numbers
// (unrealized PnL, PnL%) are computed from the position plus the latest
// price and are never stored.
type Position struct {
	Side       PositionSide `json:"side"`
	EntryPrice float64      `json:"entry_price"`
	Quantity   float64      `json:"quantity"`
}

// UnrealizedPnL returns the open PnL at the given mark price.
func (p Position) UnrealizedPnL(price float64) float64 {
	switch p.Side {
	case PositionShort:
		return (p.EntryPrice - price) * p.Quantity
	default:
		return (price - p.EntryPrice) * p.Quantity
	}
}

// PnLPercent returns the open PnL as a percentage of the entry notional.
// It returns 0 when the entry notional is 0.
func (p Position) PnLPercent(price float64) float64 {
	notional := p.EntryPrice * p.Quantity
	if notional == 0 {
		return 0
	}
	return p.UnrealizedPnL(price) / notional * 100
}
