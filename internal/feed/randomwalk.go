package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"tradesim/internal/model"

	"github.com/rs/zerolog"
)

// classProfile is the simulated behaviour of an asset class.
type classProfile struct {
	drift   float64 // max absolute move per tick
	baseLow float64
	baseHi  float64
	// candle scales the ±4 open offset and 0..6 wicks of a stock candle.
	candle float64
}

var profiles = map[model.AssetClass]classProfile{
	model.ClassStocks:      {drift: 4, baseLow: 140, baseHi: 260, candle: 1},
	model.ClassBonds:       {drift: 1.2, baseLow: 85, baseHi: 120, candle: 0.3},
	model.ClassCrypto:      {drift: 600, baseLow: 18000, baseHi: 32000, candle: 150},
	model.ClassFX:          {drift: 0.01, baseLow: 1.05, baseHi: 1.15, candle: 0.0025},
	model.ClassCommodities: {drift: 8, baseLow: 1800, baseHi: 2400, candle: 2},
}

const priceFloor = 1.0

// RandomWalkConfig configures a RandomWalk.
type RandomWalkConfig struct {
	Assets   []model.Asset
	Interval time.Duration
	// Warmup ticks are emitted immediately per asset before the timer starts,
	// so indicators have history from the first real tick.
	Warmup int
	// Seed makes the walk reproducible. Each asset derives its own stream.
	Seed   int64
	Logger zerolog.Logger
}

// RandomWalk is a demo Source: every asset moves by a uniform random drift
// sized by its class on its own independent ticker.
type RandomWalk struct {
	cfg RandomWalkConfig
	log zerolog.Logger
}

// NewRandomWalk creates a random-walk source.
func NewRandomWalk(cfg RandomWalkConfig) *RandomWalk {
	if cfg.Interval <= 0 {
		cfg.Interval = 1800 * time.Millisecond
	}
	if len(cfg.Assets) == 0 {
		cfg.Assets = model.Universe()
	}
	return &RandomWalk{cfg: cfg, log: cfg.Logger.With().Str("component", "randomwalk").Logger()}
}

// Run starts one goroutine per asset and blocks until ctx is cancelled.
func (w *RandomWalk) Run(ctx context.Context, out chan<- model.Tick) error {
	w.log.Info().Int("assets", len(w.cfg.Assets)).Dur("interval", w.cfg.Interval).Msg("random walk started")

	var wg sync.WaitGroup
	for i, a := range w.cfg.Assets {
		wg.Add(1)
		go func(i int, a model.Asset) {
			defer wg.Done()
			w.walk(ctx, NewWalker(a, w.cfg.Seed+int64(i)), out)
		}(i, a)
	}
	wg.Wait()
	return nil
}

func (w *RandomWalk) walk(ctx context.Context, wk *Walker, out chan<- model.Tick) {
	for i := 0; i < w.cfg.Warmup; i++ {
		if !send(ctx, out, wk.Next(time.Now().UTC())) {
			return
		}
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !send(ctx, out, wk.Next(now.UTC())) {
				return
			}
		}
	}
}

// Walker generates one asset's price path. It is not safe for concurrent use.
type Walker struct {
	asset model.Asset
	prof  classProfile
	rng   *rand.Rand
	price float64
	n     int
}

// NewWalker seeds a walker for a; the starting price is drawn from the
// class's base range.
func NewWalker(a model.Asset, seed int64) *Walker {
	prof, ok := profiles[a.Class]
	if !ok {
		prof = profiles[model.ClassStocks]
	}
	wk := &Walker{asset: a, prof: prof, rng: rand.New(rand.NewSource(seed))}
	wk.price = wk.between(prof.baseLow, prof.baseHi)
	return wk
}

// Price is the last generated price.
func (wk *Walker) Price() float64 { return wk.price }

// Next advances the walk by one tick.
func (wk *Walker) Next(ts time.Time) model.Tick {
	wk.n++
	wk.price = round2(math.Max(priceFloor, wk.price+wk.between(-wk.prof.drift, wk.prof.drift)))
	c := wk.candle(wk.price)
	return model.Tick{
		Symbol: wk.asset.Symbol,
		Point:  model.PricePoint{Time: model.Label(wk.n), Price: wk.price},
		Candle: &c,
		TS:     ts,
	}
}

// candle builds an OHLC bar that closes at price.
func (wk *Walker) candle(price float64) model.Candle {
	s := wk.prof.candle
	open := math.Max(0, round2(price+wk.between(-4*s, 4*s)))
	return model.Candle{
		Open:  open,
		Close: price,
		High:  round2(math.Max(open, price) + wk.between(0, 6*s)),
		Low:   math.Max(0, round2(math.Min(open, price)-wk.between(0, 6*s))),
	}
}

func (wk *Walker) between(lo, hi float64) float64 {
	return lo + wk.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
