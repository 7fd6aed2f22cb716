package pattern

import (
	"encoding/json"
	"testing"

	"tradesim/internal/model"

	"github.com/peterldowns/testy/assert"
)

func candle(o, h, l, c float64) model.Candle {
	return model.Candle{Open: o, High: h, Low: l, Close: c}
}

func TestClassify(t *testing.T) {
	bearish := candle(110, 112, 98, 100)
	bullish := candle(100, 112, 98, 110)

	tests := []struct {
		name string
		cur  model.Candle
		prev *model.Candle
		want Pattern
	}{
		{
			name: "doji with flat body",
			cur:  candle(100, 101, 99, 100),
			want: Doji,
		},
		{
			name: "doji at the ratio boundary",
			cur:  candle(100, 105, 95, 101),
			want: Doji,
		},
		{
			name: "degenerate candle uses minimum range",
			cur:  candle(50, 50, 50, 50),
			want: Doji,
		},
		{
			name: "hammer without predecessor",
			cur:  candle(100, 102, 90, 102),
			want: Hammer,
		},
		{
			name: "upper wick too long for hammer",
			cur:  candle(100, 104, 90, 102),
			want: None,
		},
		{
			name: "bullish engulfing",
			cur:  candle(95, 116, 94, 115),
			prev: &bearish,
			want: BullishEngulfing,
		},
		{
			name: "bearish engulfing",
			cur:  candle(115, 116, 94, 95),
			prev: &bullish,
			want: BearishEngulfing,
		},
		{
			name: "bullish body not containing previous",
			cur:  candle(101, 116, 100, 115),
			prev: &bearish,
			want: None,
		},
		{
			name: "engulfing needs a predecessor",
			cur:  candle(95, 116, 94, 115),
			want: None,
		},
		{
			name: "same direction is not engulfing",
			cur:  candle(95, 116, 94, 115),
			prev: &bullish,
			want: None,
		},
		{
			name: "doji wins over engulfing",
			cur:  candle(100, 130, 90, 101),
			prev: &bearish,
			want: Doji,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Classify(test.cur, test.prev))
		})
	}
}

func TestMeasure(t *testing.T) {
	s := Measure(candle(100, 110, 95, 105))
	assert.Equal(t, 5.0, s.Body)
	assert.Equal(t, 15.0, s.Range)
	assert.Equal(t, 5.0, s.UpperWick)
	assert.Equal(t, 5.0, s.LowerWick)
}

func TestPattern_JSON(t *testing.T) {
	b, err := json.Marshal(map[string]Pattern{"p": BullishEngulfing})
	assert.NoError(t, err)
	assert.Equal(t, `{"p":"bullishEngulfing"}`, string(b))
}

func TestDescribe(t *testing.T) {
	info, ok := Describe(Hammer)
	assert.True(t, ok)
	assert.Equal(t, "Hammer", info.Label)

	_, ok = Describe(None)
	assert.False(t, ok)
	assert.Equal(t, 4, len(Catalog()))
}
