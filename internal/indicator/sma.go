package indicator

// MovingAverage is the arithmetic mean of the last period prices.
func MovingAverage(prices []float64, period int) Value {
	w, ok := window(prices, period)
	if !ok {
		return Undefined
	}
	return Of(mean(w))
}

func mean(w []float64) float64 {
	sum := 0.0
	for _, p := range w {
		sum += p
	}
	return sum / float64(len(w))
}
