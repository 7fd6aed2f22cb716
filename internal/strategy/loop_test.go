package strategy

import (
	"errors"
	"testing"

	"tradesim/internal/model"
	"tradesim/internal/portfolio"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func series(prices ...float64) []model.PricePoint {
	out := make([]model.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = model.PricePoint{Time: model.Label(i + 1), Price: p}
	}
	return out
}

func maConfig(period int) model.StrategyConfig {
	cfg := model.DefaultStrategyConfig()
	cfg.MAPeriod = period
	return cfg
}

func newLedger() *portfolio.Ledger {
	return portfolio.NewLedger(model.DefaultPortfolioState(), portfolio.LedgerConfig{Logger: zerolog.Nop()})
}

// feed replays prices one tick at a time the way the engine does.
func feed(l *Loop, prices ...float64) []Outcome {
	s := series(prices...)
	out := make([]Outcome, 0, len(s))
	for i := range s {
		out = append(out, l.Tick(s[:i+1]))
	}
	return out
}

func TestLoopCrossAboveBuysOnce(t *testing.T) {
	ledger := newLedger()
	loop := NewLoop("AAPL", maConfig(3), ledger, zerolog.Nop())

	// At tick 4 price drops under MA(3) (sell, rejected: nothing held); at
	// tick 5 it crosses back above (buy).
	prices := []float64{100, 100, 100, 98, 102}
	outs := feed(loop, prices...)

	last := outs[len(outs)-1]
	assert.Equal(t, ActionBuy, last.Decision.Action)
	assert.True(t, last.Fired)
	assert.NotNil(t, last.Trade)
	assert.Equal(t, model.SourceStrategy, last.Trade.Source)
	assert.Equal(t, int64(5), last.Trade.Quantity)

	assert.Equal(t, ActionSell, outs[3].Decision.Action)
	assert.True(t, errors.Is(outs[3].Err, portfolio.ErrNoSuchHolding))

	state := ledger.State()
	assert.Equal(t, 1, len(state.TradeHistory))
	assert.Equal(t, model.SideBuy, state.TradeHistory[0].Side)

	// Same tick again: no new point, no new trade.
	again := loop.Tick(series(prices...))
	assert.Equal(t, ActionBuy, again.Decision.Action)
	assert.False(t, again.Fired)
	assert.Nil(t, again.Trade)
	assert.Equal(t, 1, len(ledger.State().TradeHistory))

	assert.Equal(t, Memory{LastSignal: ActionBuy, LastTickTime: "T-5"}, loop.Memory())
	assert.Equal(t, StateIdle, loop.State())
}

func TestLoopShortHistoryNeverSignals(t *testing.T) {
	loop := NewLoop("AAPL", maConfig(10), newLedger(), zerolog.Nop())
	for _, o := range feed(loop, 100, 90, 110, 80, 120) {
		assert.Equal(t, ActionNone, o.Decision.Action)
		assert.False(t, o.Snapshot.MovingAverage.Ready())
	}
	assert.Equal(t, Memory{LastSignal: ActionNone}, loop.Memory())
}

func TestLoopRejectionStillUpdatesMemory(t *testing.T) {
	ledger := newLedger()
	loop := NewLoop("TSLA", maConfig(3), ledger, zerolog.Nop())

	outs := feed(loop, 100, 100, 100, 98)
	last := outs[len(outs)-1]
	assert.Equal(t, ActionSell, last.Decision.Action)
	assert.True(t, last.Fired)
	assert.Error(t, last.Err)
	assert.Equal(t, Memory{LastSignal: ActionSell, LastTickTime: "T-4"}, loop.Memory())

	// not retried on the same tick
	retry := loop.Tick(series(100, 100, 100, 98))
	assert.False(t, retry.Fired)
	assert.Nil(t, retry.Err)
}

func TestLoopWithoutAutoExecute(t *testing.T) {
	ledger := newLedger()
	cfg := maConfig(3)
	cfg.AutoExecute = false
	loop := NewLoop("MSFT", cfg, ledger, zerolog.Nop())

	outs := feed(loop, 100, 100, 100, 98, 102)
	last := outs[len(outs)-1]
	assert.True(t, last.Fired)
	assert.Nil(t, last.Trade)
	assert.Equal(t, 0, len(ledger.State().TradeHistory))
	assert.Equal(t, ActionBuy, loop.Memory().LastSignal)
}

func TestLoopDisabled(t *testing.T) {
	ledger := newLedger()
	cfg := maConfig(3)
	cfg.Enabled = false
	loop := NewLoop("MSFT", cfg, ledger, zerolog.Nop())

	outs := feed(loop, 100, 100, 100, 98, 102)
	last := outs[len(outs)-1]
	assert.Equal(t, ActionNone, last.Decision.Action)
	ma, ok := last.Snapshot.MovingAverage.Float()
	assert.True(t, ok)
	assert.Equal(t, 100.0, ma)
	assert.Equal(t, 0, len(ledger.State().TradeHistory))

	// re-enabled: takes effect on the next tick
	cfg.Enabled = true
	loop.SetConfig(cfg)
	assert.Equal(t, ActionBuy, loop.Tick(series(100, 100, 100, 98, 102)).Decision.Action)
}

func TestLoopRSIOverboughtSellsHolding(t *testing.T) {
	ledger := newLedger()
	cfg := model.DefaultStrategyConfig()
	cfg.Rules.MACross = false
	cfg.RSIPeriod = 3
	cfg.TradeQuantity = 2
	loop := NewLoop("BTC", cfg, ledger, zerolog.Nop())

	_, err := ledger.Execute(portfolio.Order{Symbol: "BTC", Side: model.SideBuy, Quantity: 2, Price: dec(100)})
	assert.NoError(t, err)

	outs := feed(loop, 100, 101, 102, 103)
	last := outs[len(outs)-1]
	assert.Equal(t, ActionSell, last.Decision.Action)
	assert.NotNil(t, last.Trade)
	_, held := ledger.State().Holding("BTC")
	assert.False(t, held)
}

func TestLoopEmptySeries(t *testing.T) {
	loop := NewLoop("ETH", model.DefaultStrategyConfig(), nil, zerolog.Nop())
	assert.Equal(t, ActionNone, loop.Tick(nil).Decision.Action)
}
