package indicator

// Bands holds Bollinger mean and envelope.
type Bands struct {
	Mean  Value `json:"mean"`
	Upper Value `json:"upper"`
	Lower Value `json:"lower"`
}

// Ready reports whether the bands are defined.
func (b Bands) Ready() bool { return b.Mean.Ready() }

// Bollinger builds mean +/- k*sigma from MovingAverage and Volatility over
// the same window. If either is undefined all three fields are undefined.
func Bollinger(prices []float64, period int, k float64) Bands {
	m, okM := MovingAverage(prices, period).Float()
	sd, okS := Volatility(prices, period).Float()
	if !okM || !okS {
		return Bands{Mean: Undefined, Upper: Undefined, Lower: Undefined}
	}
	return Bands{
		Mean:  Of(m),
		Upper: Of(m + k*sd),
		Lower: Of(m - k*sd),
	}
}
