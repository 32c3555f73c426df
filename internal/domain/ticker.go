package domain

import "strings"

// DefaultVenue is assumed for bots that carry no venue.
const DefaultVenue = "BINANCE"

// TickerItem is one entry of the full-replace price subscription list sent
// to the server.
type TickerItem struct {
	ExchangeID string `json:"exchangeId"`
	MarketType string `json:"marketType"`
	Symbol     string `json:"symbol"`
}

// Key returns the composite dedup/sort key for the item. Venue comparison is
// case-insensitive.
func (t TickerItem) Key() string {
	return strings.ToLower(t.ExchangeID) + "|" + t.MarketType + "|" + t.Symbol
}

// CanonicalMarketType maps legacy market-type aliases onto their canonical
// names. Unknown values are passed through upper-cased; empty defaults to
// SPOT.
func CanonicalMarketType(mt string) string {
	switch strings.ToUpper(strings.TrimSpace(mt)) {
	case "", "CEX":
		return "SPOT"
	case "FUTURE":
		return "FUTURES"
	default:
		return strings.ToUpper(strings.TrimSpace(mt))
	}
}
