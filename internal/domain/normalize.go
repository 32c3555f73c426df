package domain

import (
	"fmt"
	"sort"
	"strings"

	"botwatch/internal/timeline"
)

// Normalize converts a wire candle to the canonical second-resolution form.
func (w WireCandle) Normalize() (Candle, error) {
	ts, err := timeline.ToSeconds(w.Time)
	if err != nil {
		return Candle{}, fmt.Errorf("candle: %w", err)
	}
	return Candle{Time: ts, Open: w.Open, High: w.High, Low: w.Low, Close: w.Close}, nil
}

// Normalize converts a wire signal to canonical form. The side tag is
// upper-cased but otherwise opaque.
func (w WireSignal) Normalize() (Signal, error) {
	ts, err := timeline.ToSeconds(w.Timestamp)
	if err != nil {
		return Signal{}, fmt.Errorf("signal %s: %w", w.ID, err)
	}
	return Signal{
		ID:        w.ID,
		BotID:     w.BotID,
		Source:    w.Source,
		Symbol:    strings.ToUpper(strings.TrimSpace(w.Symbol)),
		Side:      Side(strings.ToUpper(strings.TrimSpace(w.Side))),
		Price:     w.Price,
		Timestamp: ts,
		Status:    w.Status,
		Reasoning: w.Reasoning,
	}, nil
}

// Normalize converts a wire position. A nil payload or an empty side means
// the position slot is empty.
func (w *WirePosition) Normalize() *Position {
	if w == nil {
		return nil
	}
	side := PositionSide(strings.ToUpper(strings.TrimSpace(w.Side)))
	if side != PositionLong && side != PositionShort {
		return nil
	}
	return &Position{Side: side, EntryPrice: w.EntryPrice, Quantity: w.Quantity}
}

// NormalizeCandles converts a wire candle array to a canonical series:
// ascending in time, no duplicate time keys (later entries win), malformed
// entries dropped. An empty or nil input yields nil, which callers treat as
// valid "no data".
func NormalizeCandles(wire []WireCandle) []Candle {
	if len(wire) == 0 {
		return nil
	}
	byTime := make(map[int64]Candle, len(wire))
	for _, w := range wire {
		c, err := w.Normalize()
		if err != nil {
			continue
		}
		byTime[c.Time] = c
	}
	if len(byTime) == 0 {
		return nil
	}
	out := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// NormalizeSignals converts a wire signal array to canonical form: unique by
// identity (later entries win), sorted most-recent-first, truncated to
// limit when limit > 0.
func NormalizeSignals(wire []WireSignal, limit int) []Signal {
	if len(wire) == 0 {
		return nil
	}
	byID := make(map[string]int, len(wire))
	out := make([]Signal, 0, len(wire))
	for _, w := range wire {
		s, err := w.Normalize()
		if err != nil {
			continue
		}
		if i, ok := byID[s.Identity()]; ok {
			out[i] = s
			continue
		}
		byID[s.Identity()] = len(out)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
