package indicator

import (
	"encoding/json"
	"testing"

	"tradesim/internal/model"

	"github.com/peterldowns/testy/assert"
)

func series(prices ...float64) []model.PricePoint {
	out := make([]model.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = model.PricePoint{Time: model.Label(i + 1), Price: p}
	}
	return out
}

func TestCompute_PartialHistory(t *testing.T) {
	// 4 points: MA(3) and MOM(2) defined, RSI(14), VOL(20), BB(20) not.
	p := Params{MAPeriod: 3, RSIPeriod: 14, VolatilityPeriod: 20, MomentumLookback: 2, BollingerPeriod: 20, BollingerK: 2}
	snap := Compute(series(10, 11, 12, 13), p)

	ma, ok := snap.MovingAverage.Float()
	assert.True(t, ok)
	assert.Equal(t, 12.0, ma)
	assert.True(t, snap.Momentum.Ready())
	assert.False(t, snap.RSI.Ready())
	assert.False(t, snap.Volatility.Ready())
	assert.False(t, snap.Bollinger.Ready())
}

func TestStrategyParams(t *testing.T) {
	cfg := model.DefaultStrategyConfig()
	p := StrategyParams(cfg)
	assert.Equal(t, 10, p.MAPeriod)
	assert.Equal(t, 14, p.RSIPeriod)
	assert.Equal(t, 20, p.BollingerPeriod)
	assert.Equal(t, 20, p.VolatilityPeriod)
	assert.Equal(t, 2.0, p.BollingerK)
}

func TestSnapshot_JSONUndefinedIsNull(t *testing.T) {
	snap := Compute(series(1, 2), AnalyticsParams())
	b, err := json.Marshal(snap)
	assert.NoError(t, err)

	var raw map[string]any
	assert.NoError(t, json.Unmarshal(b, &raw))
	assert.Nil(t, raw["movingAverage"])

	var back Snapshot
	assert.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back == snap)
}

func TestValue_JSONRoundTripDefined(t *testing.T) {
	b, err := json.Marshal(Of(42.5))
	assert.NoError(t, err)
	assert.Equal(t, "42.5", string(b))

	var v Value
	assert.NoError(t, json.Unmarshal(b, &v))
	got, ok := v.Float()
	assert.True(t, ok)
	assert.Equal(t, 42.5, got)
}
