package indicator

import "tradesim/internal/model"

// DefaultMomentumLookback is used when a strategy has no momentum setting.
const DefaultMomentumLookback = 6

// Params selects the windows used to build a Snapshot.
type Params struct {
	MAPeriod         int
	RSIPeriod        int
	VolatilityPeriod int
	MomentumLookback int
	BollingerPeriod  int
	BollingerK       float64
}

// StrategyParams derives snapshot windows from a strategy configuration.
// Volatility shares the Bollinger window.
func StrategyParams(cfg model.StrategyConfig) Params {
	return Params{
		MAPeriod:         cfg.MAPeriod,
		RSIPeriod:        cfg.RSIPeriod,
		VolatilityPeriod: cfg.BollingerPeriod,
		MomentumLookback: DefaultMomentumLookback,
		BollingerPeriod:  cfg.BollingerPeriod,
		BollingerK:       cfg.BollingerStdMultiplier,
	}
}

// AnalyticsParams are the fixed windows of the analytics view.
func AnalyticsParams() Params {
	return Params{
		MAPeriod:         10,
		RSIPeriod:        14,
		VolatilityPeriod: 12,
		MomentumLookback: 6,
		BollingerPeriod:  20,
		BollingerK:       2,
	}
}

// Snapshot is every indicator for one tick.
type Snapshot struct {
	MovingAverage Value `json:"movingAverage"`
	RSI           Value `json:"rsi"`
	Volatility    Value `json:"volatility"`
	Momentum      Value `json:"momentum"`
	Bollinger     Bands `json:"bollinger"`
}

// Compute recomputes a full snapshot from the series.
func Compute(series []model.PricePoint, p Params) Snapshot {
	return ComputePrices(model.Prices(series), p)
}

// ComputePrices is Compute over a bare price column.
func ComputePrices(prices []float64, p Params) Snapshot {
	return Snapshot{
		MovingAverage: MovingAverage(prices, p.MAPeriod),
		RSI:           RSI(prices, p.RSIPeriod),
		Volatility:    Volatility(prices, p.VolatilityPeriod),
		Momentum:      Momentum(prices, p.MomentumLookback),
		Bollinger:     Bollinger(prices, p.BollingerPeriod, p.BollingerK),
	}
}
