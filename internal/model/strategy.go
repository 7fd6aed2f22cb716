package model

// Rules toggles the individual signal rules of a strategy.
type Rules struct {
	MACross       bool `json:"maCross" yaml:"ma_cross"`
	RSIOverbought bool `json:"rsiOverbought" yaml:"rsi_overbought"`
}

// StrategyConfig parameterises one strategy loop. Changes take effect on the
// next tick.
type StrategyConfig struct {
	Enabled                bool    `json:"enabled" yaml:"enabled"`
	MAPeriod               int     `json:"maPeriod" yaml:"ma_period" default:"10" validate:"gte=1,lte=500"`
	RSIPeriod              int     `json:"rsiPeriod" yaml:"rsi_period" default:"14" validate:"gte=1,lte=500"`
	BollingerPeriod        int     `json:"bollingerPeriod" yaml:"bollinger_period" default:"20" validate:"gte=1,lte=500"`
	BollingerStdMultiplier float64 `json:"bollingerStdMultiplier" yaml:"bollinger_std" default:"2" validate:"gt=0"`
	TradeQuantity          int64   `json:"tradeQuantity" yaml:"trade_quantity" default:"5" validate:"gte=1"`
	Rules                  Rules   `json:"rules" yaml:"rules"`
	AutoExecute            bool    `json:"autoExecute" yaml:"auto_execute"`
}

// DefaultStrategyConfig mirrors the simulator's out-of-the-box settings.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Enabled:                true,
		MAPeriod:               10,
		RSIPeriod:              14,
		BollingerPeriod:        20,
		BollingerStdMultiplier: 2,
		TradeQuantity:          5,
		Rules:                  Rules{MACross: true, RSIOverbought: true},
		AutoExecute:            true,
	}
}
