package feed

import (
	"context"
	"math"
	"testing"
	"time"

	"tradesim/internal/model"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
)

func TestWalkerIsDeterministic(t *testing.T) {
	btc, _ := model.LookupAsset("BTC")
	a, b := NewWalker(btc, 42), NewWalker(btc, 42)
	ts := time.Unix(0, 0)
	for i := 0; i < 50; i++ {
		ta, tb := a.Next(ts), b.Next(ts)
		assert.Equal(t, ta.Point, tb.Point)
		assert.Equal(t, *ta.Candle, *tb.Candle)
	}
}

func TestWalkerBoundsAndLabels(t *testing.T) {
	for _, asset := range model.Universe() {
		t.Run(asset.Symbol, func(t *testing.T) {
			wk := NewWalker(asset, 7)
			prof := profiles[asset.Class]
			prev := wk.Price()
			for i := 1; i <= 200; i++ {
				tick := wk.Next(time.Now())
				assert.Equal(t, asset.Symbol, tick.Symbol)
				assert.Equal(t, model.Label(i), tick.Point.Time)
				assert.True(t, tick.Point.Price >= priceFloor)
				// rounding may add half a cent
				assert.True(t, math.Abs(tick.Point.Price-prev) <= prof.drift+0.005)
				assert.Equal(t, tick.Point.Price, math.Round(tick.Point.Price*100)/100)
				assert.True(t, tick.Candle.Valid())
				assert.Equal(t, tick.Point.Price, tick.Candle.Close)
				prev = tick.Point.Price
			}
		})
	}
}

func TestWalkerFloor(t *testing.T) {
	wk := NewWalker(model.Asset{Symbol: "PENNY", Class: model.ClassStocks}, 1)
	wk.price = 1.5
	for i := 0; i < 100; i++ {
		assert.True(t, wk.Next(time.Now()).Point.Price >= 1)
	}
}

func TestRandomWalkRunEmitsWarmup(t *testing.T) {
	assets := []model.Asset{
		{Symbol: "AAPL", Class: model.ClassStocks},
		{Symbol: "ETH", Class: model.ClassCrypto},
	}
	w := NewRandomWalk(RandomWalkConfig{
		Assets:   assets,
		Interval: time.Hour,
		Warmup:   5,
		Seed:     3,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Tick, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, out)
	}()

	counts := map[string]int{}
	for i := 0; i < 10; i++ {
		select {
		case tick := <-out:
			counts[tick.Symbol]++
			assert.Equal(t, model.Label(counts[tick.Symbol]), tick.Point.Time)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for warmup ticks")
		}
	}
	cancel()
	<-done
	assert.Equal(t, map[string]int{"AAPL": 5, "ETH": 5}, counts)
}
