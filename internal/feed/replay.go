package feed

import (
	"context"
	"fmt"
	"os"
	"time"

	"tradesim/internal/model"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// maxReplayGap caps the sleep between two replayed ticks.
const maxReplayGap = 5 * time.Second

// Recording is a captured multi-asset price series. Ticks are interleaved
// round-robin across assets, oldest first.
type Recording struct {
	Name     string
	Interval time.Duration
	Ticks    []model.Tick
}

// Symbols lists the assets in the recording in first-seen order.
func (r Recording) Symbols() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range r.Ticks {
		if !seen[t.Symbol] {
			seen[t.Symbol] = true
			out = append(out, t.Symbol)
		}
	}
	return out
}

// LoadRecording reads a recording file. See ParseRecording for the format.
func LoadRecording(path string) (Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recording{}, fmt.Errorf("read recording: %w", err)
	}
	return ParseRecording(data)
}

// ParseRecording decodes
//
//	{"name": "...", "interval_ms": 1800,
//	 "assets": [{"symbol": "AAPL", "points": [
//	   {"time": "T-1", "price": 187.2, "open": 186, "high": 189, "low": 185.5, "close": 187.2}, ...]}]}
//
// The OHLC fields are optional; a point without all four has no candle.
// A point without a time label gets T-n by position.
func ParseRecording(data []byte) (Recording, error) {
	if !gjson.ValidBytes(data) {
		return Recording{}, fmt.Errorf("recording is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	rec := Recording{
		Name:     doc.Get("name").String(),
		Interval: time.Duration(doc.Get("interval_ms").Int()) * time.Millisecond,
	}

	assets := doc.Get("assets").Array()
	if len(assets) == 0 {
		return Recording{}, fmt.Errorf("recording has no assets")
	}

	perAsset := make([][]model.Tick, 0, len(assets))
	longest := 0
	for i, a := range assets {
		symbol := a.Get("symbol").String()
		if symbol == "" {
			return Recording{}, fmt.Errorf("asset %d: missing symbol", i)
		}
		points := a.Get("points").Array()
		ticks := make([]model.Tick, 0, len(points))
		for j, p := range points {
			price := p.Get("price").Float()
			if !model.ValidPrice(price) {
				return Recording{}, fmt.Errorf("%s point %d: invalid price %v", symbol, j, price)
			}
			label := p.Get("time").String()
			if label == "" {
				label = model.Label(j + 1)
			}
			t := model.Tick{Symbol: symbol, Point: model.PricePoint{Time: label, Price: price}}
			if c, ok := parseCandle(p); ok {
				t.Candle = &c
			}
			ticks = append(ticks, t)
		}
		perAsset = append(perAsset, ticks)
		longest = max(longest, len(ticks))
	}

	for j := 0; j < longest; j++ {
		for _, ticks := range perAsset {
			if j < len(ticks) {
				rec.Ticks = append(rec.Ticks, ticks[j])
			}
		}
	}
	return rec, nil
}

func parseCandle(p gjson.Result) (model.Candle, bool) {
	fields := []string{"open", "high", "low", "close"}
	for _, f := range fields {
		if !p.Get(f).Exists() {
			return model.Candle{}, false
		}
	}
	c := model.Candle{
		Open:  p.Get("open").Float(),
		High:  p.Get("high").Float(),
		Low:   p.Get("low").Float(),
		Close: p.Get("close").Float(),
	}
	return c, c.Valid()
}

// Replayer emits a recording at a speed multiple of its interval.
type Replayer struct {
	rec   Recording
	speed float64
	log   zerolog.Logger
}

// NewReplayer replays rec. speed 1.0 keeps the recorded interval, 10.0 is ten
// times faster and 0 replays as fast as the consumer accepts.
func NewReplayer(rec Recording, speed float64, logger zerolog.Logger) *Replayer {
	return &Replayer{rec: rec, speed: speed, log: logger.With().Str("component", "replay").Logger()}
}

// Run emits every tick, then returns. The gap between ticks is the recorded
// interval divided by the number of assets, so each asset advances once per
// interval.
func (r *Replayer) Run(ctx context.Context, out chan<- model.Tick) error {
	if len(r.rec.Ticks) == 0 {
		r.log.Info().Msg("recording is empty")
		return nil
	}
	r.log.Info().Str("name", r.rec.Name).Int("ticks", len(r.rec.Ticks)).Float64("speed", r.speed).Msg("replay started")

	var gap time.Duration
	if r.speed > 0 && r.rec.Interval > 0 {
		gap = time.Duration(float64(r.rec.Interval) / r.speed / float64(len(r.rec.Symbols())))
		gap = min(gap, maxReplayGap)
	}

	emitted := 0
	for i, t := range r.rec.Ticks {
		if gap > 0 && i > 0 {
			select {
			case <-ctx.Done():
				r.log.Info().Int("emitted", emitted).Msg("replay cancelled")
				return ctx.Err()
			case <-time.After(gap):
			}
		}
		if t.TS.IsZero() {
			t.TS = time.Now().UTC()
		}
		if !send(ctx, out, t) {
			r.log.Info().Int("emitted", emitted).Msg("replay cancelled")
			return ctx.Err()
		}
		emitted++
	}

	r.log.Info().Int("emitted", emitted).Msg("replay completed")
	return nil
}
