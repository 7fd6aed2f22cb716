package model

import (
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestValidPrice(t *testing.T) {
	assert.True(t, ValidPrice(0.01))
	assert.True(t, ValidPrice(187.5))
	for _, p := range []float64{0, -1, math.Inf(1), math.Inf(-1), math.NaN()} {
		assert.False(t, ValidPrice(p))
	}
}

func TestCandleValidRejectsInfiniteBounds(t *testing.T) {
	assert.True(t, Candle{Open: 9, High: 11, Low: 8, Close: 10}.Valid())
	assert.False(t, Candle{Open: 9, High: 8, Low: 7, Close: 10}.Valid())
	assert.False(t, Candle{Open: 9, High: math.Inf(1), Low: 8, Close: 10}.Valid())
	assert.False(t, Candle{Open: 9, High: 11, Low: math.Inf(-1), Close: 10}.Valid())
}
