package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/strategy"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestKeys(t *testing.T) {
	k := NewKeys("")
	assert.Equal(t, "tradesim:portfolio:alice", k.Portfolio("alice"))
	assert.Equal(t, "tradesim:strategy", k.Strategies())
	assert.Equal(t, "tradesim:latest:BTC", k.Latest("BTC"))

	k = NewKeys("sim2")
	assert.Equal(t, "sim2:events", k.EventsChannel())
	assert.Equal(t, "sim2:trades", k.TradesChannel())
}

func TestDecodePortfolio(t *testing.T) {
	state, err := decodePortfolio(nil)
	assert.NoError(t, err)
	if diff := cmp.Diff(model.DefaultPortfolioState(), state); diff != "" {
		t.Errorf("nil blob should decode to the default state (-want +got):\n%s", diff)
	}

	state, err = decodePortfolio([]byte(`{"cashBalance":"990.5","holdings":null,"realizedPL":"1.25"}`))
	assert.NoError(t, err)
	assert.True(t, state.CashBalance.Equal(decimal.RequireFromString("990.5")))
	assert.True(t, state.RealizedPL.Equal(decimal.RequireFromString("1.25")))
	assert.NotNil(t, state.Holdings)
	assert.NotNil(t, state.TradeHistory)

	_, err = decodePortfolio([]byte(`{`))
	assert.Error(t, err)
}

func TestDecodeStrategyFillsDefaults(t *testing.T) {
	cfg, err := decodeStrategy([]byte(`{"maPeriod":3,"enabled":false}`))
	assert.NoError(t, err)

	want := model.DefaultStrategyConfig()
	want.MAPeriod = 3
	want.Enabled = false
	assert.Equal(t, want, cfg)
}

type fakeRedis struct {
	fail    bool
	batches [][]Message
}

func (f *fakeRedis) publish(_ context.Context, msgs []Message) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func newTestPublisher(maxBuf int) (*Publisher, *fakeRedis, *clock) {
	fr := &fakeRedis{}
	cb, clk := newTestBreaker(2)
	return newPublisher(NewKeys("t"), cb, fr.publish, maxBuf, zerolog.Nop()), fr, clk
}

func event(symbol string, n int, trade bool) strategy.Event {
	ev := strategy.Event{
		Symbol: symbol,
		Point:  model.PricePoint{Time: model.Label(n), Price: 100},
		TS:     time.Unix(int64(n), 0),
	}
	if trade {
		ev.Trade = &model.Trade{Symbol: symbol, Side: model.SideBuy, Quantity: 1}
	}
	return ev
}

func TestPublisherMessages(t *testing.T) {
	p, fr, _ := newTestPublisher(10)
	ctx := context.Background()

	p.Publish(ctx, event("BTC", 1, false))
	p.Publish(ctx, event("BTC", 2, true))

	assert.Equal(t, 2, len(fr.batches))
	assert.Equal(t, 1, len(fr.batches[0]))
	assert.Equal(t, "t:latest:BTC", fr.batches[0][0].Key)
	assert.Equal(t, "t:events", fr.batches[0][0].Channel)

	assert.Equal(t, 2, len(fr.batches[1]))
	assert.Equal(t, "t:trades", fr.batches[1][1].Channel)
	assert.Equal(t, "", fr.batches[1][1].Key)
}

func TestPublisherBuffersWhileOpenAndFlushes(t *testing.T) {
	p, fr, clk := newTestPublisher(10)
	ctx := context.Background()
	flushed := 0
	p.OnFlush = func(n int) { flushed = n }

	fr.fail = true
	p.Publish(ctx, event("ETH", 1, false))
	p.Publish(ctx, event("ETH", 2, false))
	assert.Equal(t, StateOpen, p.breaker.CurrentState())

	// rejected by the open breaker without reaching redis
	p.Publish(ctx, event("ETH", 3, false))
	assert.Equal(t, 3, p.Buffered())
	assert.Equal(t, 0, len(fr.batches))

	fr.fail = false
	clk.advance(11 * time.Second)
	p.Publish(ctx, event("ETH", 4, false))

	assert.Equal(t, StateClosed, p.breaker.CurrentState())
	assert.Equal(t, 0, p.Buffered())
	assert.Equal(t, 3, flushed)
	assert.Equal(t, 1, len(fr.batches))
	assert.Equal(t, 4, len(fr.batches[0]))
}

func TestPublisherDropsOldestBeyondLimit(t *testing.T) {
	p, fr, _ := newTestPublisher(2)
	fr.fail = true
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		p.Publish(ctx, event("XAU", i, false))
	}
	assert.Equal(t, 2, p.Buffered())
	assert.Equal(t, 3, p.Dropped())
}

func TestPublisherEnqueueFull(t *testing.T) {
	p, _, _ := newTestPublisher(2)
	for i := 0; i < defaultEventQueue; i++ {
		assert.True(t, p.Enqueue(event("AAPL", i, false)))
	}
	assert.False(t, p.Enqueue(event("AAPL", 999, false)))
}
