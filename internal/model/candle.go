package model

import "math"

// Candle is one OHLC bar for a single asset, derived per tick from the
// underlying price.
type Candle struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Valid reports whether the bounds are finite and
// low <= min(open, close) <= max(open, close) <= high.
func (c Candle) Valid() bool {
	if math.IsInf(c.Low, 0) || math.IsInf(c.High, 0) {
		return false
	}
	return c.Low <= min(c.Open, c.Close) && max(c.Open, c.Close) <= c.High
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }
