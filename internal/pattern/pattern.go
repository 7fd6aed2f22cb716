// Package pattern classifies a candle, optionally against its predecessor,
// into at most one candlestick pattern.
package pattern

import (
	"math"

	"tradesim/internal/model"
)

// Pattern is a recognised candlestick formation.
type Pattern int

const (
	None Pattern = iota
	Doji
	Hammer
	BullishEngulfing
	BearishEngulfing
)

const (
	// minRange keeps body/range finite on degenerate candles.
	minRange = 0.01

	dojiBodyRatio       = 0.10
	hammerLowerWickMult = 2.0
	hammerUpperWickMult = 0.6
)

var names = map[Pattern]string{
	None:             "none",
	Doji:             "doji",
	Hammer:           "hammer",
	BullishEngulfing: "bullishEngulfing",
	BearishEngulfing: "bearishEngulfing",
}

// String returns the pattern key.
func (p Pattern) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return "unknown"
}

// MarshalText encodes the pattern key for JSON output.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Stats are the candle measurements the rules are expressed in.
type Stats struct {
	Body      float64
	Range     float64
	UpperWick float64
	LowerWick float64
}

// Measure computes body, range and wick lengths for c.
func Measure(c model.Candle) Stats {
	return Stats{
		Body:      math.Abs(c.Close - c.Open),
		Range:     math.Max(c.High-c.Low, minRange),
		UpperWick: c.High - math.Max(c.Open, c.Close),
		LowerWick: math.Min(c.Open, c.Close) - c.Low,
	}
}

// Classify returns the first matching pattern in priority order: doji,
// hammer, bullish engulfing, bearish engulfing. prev may be nil, in which
// case the engulfing rules cannot match.
func Classify(cur model.Candle, prev *model.Candle) Pattern {
	s := Measure(cur)

	if s.Body/s.Range <= dojiBodyRatio {
		return Doji
	}
	if s.LowerWick >= hammerLowerWickMult*s.Body && s.UpperWick <= hammerUpperWickMult*s.Body {
		return Hammer
	}
	if prev == nil {
		return None
	}
	if prev.Bearish() && cur.Bullish() && cur.Open <= prev.Close && cur.Close >= prev.Open {
		return BullishEngulfing
	}
	if prev.Bullish() && cur.Bearish() && cur.Open >= prev.Close && cur.Close <= prev.Open {
		return BearishEngulfing
	}
	return None
}
