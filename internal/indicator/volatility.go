package indicator

import "math"

// Volatility is the population standard deviation of the last period prices.
func Volatility(prices []float64, period int) Value {
	w, ok := window(prices, period)
	if !ok {
		return Undefined
	}
	return Of(stddev(w, mean(w)))
}

func stddev(w []float64, m float64) float64 {
	variance := 0.0
	for _, p := range w {
		d := p - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(w)))
}
