package indicator

// Momentum is the percent change between the latest price and the price
// lookback steps earlier. A zero reference price has no defined change.
func Momentum(prices []float64, lookback int) Value {
	w, ok := window(prices, lookback+1)
	if !ok || lookback <= 0 {
		return Undefined
	}
	prev, cur := w[0], w[len(w)-1]
	if prev == 0 {
		return Undefined
	}
	return Of((cur - prev) / prev * 100)
}
