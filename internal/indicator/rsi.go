package indicator

// RSI sums gains and losses over the last period price transitions, which
// needs period+1 prices. An unchanged price counts toward gains. With no
// losses in the window the result is 100.
//
// This is the simple-sum form, not Wilder smoothing.
func RSI(prices []float64, period int) Value {
	w, ok := window(prices, period+1)
	if !ok || period <= 0 {
		return Undefined
	}
	var gains, losses float64
	for i := 1; i < len(w); i++ {
		diff := w[i] - w[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		return Of(100)
	}
	rs := gains / losses
	return Of(100 - 100/(1+rs))
}
