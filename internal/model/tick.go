package model

import (
	"math"
	"time"
)

// PricePoint is one observation in an asset's price history. Time is an
// ordinal label ("T-31") that identifies the tick.
type PricePoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}

// ValidPrice reports whether p is finite and positive.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 1)
}

// Tick is a single feed delivery for one asset: the new price point and,
// when the source produces one, the candle for the same tick.
type Tick struct {
	Symbol string     `json:"symbol"`
	Point  PricePoint `json:"point"`
	Candle *Candle    `json:"candle,omitempty"`
	TS     time.Time  `json:"ts"`
}

// Prices extracts the price column of a series, oldest first.
func Prices(series []PricePoint) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Price
	}
	return out
}
