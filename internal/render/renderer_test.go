package render

import (
	"io"
	"testing"
	"time"

	"botwatch/internal/decay"
	"botwatch/internal/domain"
	"botwatch/internal/reconcile"

	"github.com/stretchr/testify/assert"
)

type fakeViews struct {
	views    []reconcile.View
	activity []reconcile.ActivityEntry
}

func (f *fakeViews) Views() []reconcile.View             { return f.views }
func (f *fakeViews) Activity() []reconcile.ActivityEntry { return f.activity }

type fakeSignals struct {
	global   []decay.Entry
	selected []decay.Entry
}

func (f *fakeSignals) Global() []decay.Entry   { return f.global }
func (f *fakeSignals) Selected() []decay.Entry { return f.selected }

type fakeStatus struct{ up bool }

func (f *fakeStatus) IsConnected() bool { return f.up }

func TestFrameShowsViewsSignalsAndActivity(t *testing.T) {
	views := &fakeViews{
		views: []reconcile.View{{
			Bot:       domain.Bot{ID: "bot-1", Name: "grid-btc", Symbol: "BTCUSDT"},
			State:     reconcile.ViewStateLive,
			Timeframe: "1m",
			Candles:   []domain.Candle{{Time: 60}, {Time: 120}},
			Position:  &domain.Position{Side: domain.PositionLong, EntryPrice: 100, Quantity: 2},
			LastPrice: 110,
		}},
		activity: []reconcile.ActivityEntry{
			{BotID: "bot-1", Message: "order placed", Time: 1700000000},
		},
	}
	signals := &fakeSignals{
		global: []decay.Entry{{
			ID:        "s1",
			ArrivedAt: time.Now(),
			Signal:    domain.Signal{Symbol: "ETHUSDT", Side: domain.SideBuy, Price: 42, Status: "pending"},
		}},
	}

	r := New(io.Discard, views, signals, &fakeStatus{up: true}, Config{})
	frame := r.Frame()

	assert.Contains(t, frame, "LIVE")
	assert.Contains(t, frame, "grid-btc")
	assert.Contains(t, frame, "BTCUSDT")
	assert.Contains(t, frame, "live")
	assert.Contains(t, frame, "110")
	assert.Contains(t, frame, "+20.0000 (+10.00%)")
	assert.Contains(t, frame, "ETHUSDT")
	assert.Contains(t, frame, "order placed")
}

func TestFrameDisconnectedAndEmpty(t *testing.T) {
	r := New(io.Discard, &fakeViews{}, &fakeSignals{}, &fakeStatus{}, Config{})
	frame := r.Frame()

	assert.Contains(t, frame, "DISCONNECTED")
	assert.NotContains(t, frame, "live")
}

func TestActivityTailBounded(t *testing.T) {
	views := &fakeViews{}
	for i := 0; i < 10; i++ {
		views.activity = append(views.activity, reconcile.ActivityEntry{BotID: "b", Message: string(rune('a' + i))})
	}

	r := New(io.Discard, views, nil, nil, Config{ActivityTail: 2})
	frame := r.Frame()

	assert.NotContains(t, frame, "[b] h")
	assert.Contains(t, frame, "[b] i")
	assert.Contains(t, frame, "[b] j")
}
