package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tradesim/internal/model"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
)

const recordingJSON = `{
  "name": "two assets",
  "interval_ms": 1800,
  "assets": [
    {"symbol": "AAPL", "points": [
      {"time": "T-1", "price": 100, "open": 99, "high": 101, "low": 98, "close": 100},
      {"time": "T-2", "price": 101},
      {"time": "T-3", "price": 102}
    ]},
    {"symbol": "BTC", "points": [
      {"price": 25000},
      {"price": 25100}
    ]}
  ]
}`

func TestParseRecording(t *testing.T) {
	rec, err := ParseRecording([]byte(recordingJSON))
	assert.NoError(t, err)
	assert.Equal(t, "two assets", rec.Name)
	assert.Equal(t, int64(1800), rec.Interval.Milliseconds())
	assert.Equal(t, []string{"AAPL", "BTC"}, rec.Symbols())

	var order []string
	for _, tk := range rec.Ticks {
		order = append(order, tk.Symbol+"@"+tk.Point.Time)
	}
	assert.Equal(t, []string{"AAPL@T-1", "BTC@T-1", "AAPL@T-2", "BTC@T-2", "AAPL@T-3"}, order)
	assert.NotNil(t, rec.Ticks[0].Candle)
	assert.Nil(t, rec.Ticks[2].Candle)
}

func TestParseRecordingErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"assets": [`},
		{"no assets", `{"name": "x"}`},
		{"no symbol", `{"assets": [{"points": [{"price": 1}]}]}`},
		{"zero price", `{"assets": [{"symbol": "A", "points": [{"price": 0}]}]}`},
		{"infinite price", `{"assets": [{"symbol": "A", "points": [{"price": 100}, {"price": 1e400}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecording([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadRecordingAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.json")
	assert.NoError(t, os.WriteFile(path, []byte(recordingJSON), 0o644))

	rec, err := LoadRecording(path)
	assert.NoError(t, err)

	out := make(chan model.Tick, len(rec.Ticks))
	err = NewReplayer(rec, 0, zerolog.Nop()).Run(context.Background(), out)
	assert.NoError(t, err)
	close(out)

	n := 0
	for tk := range out {
		assert.Equal(t, rec.Ticks[n].Point, tk.Point)
		assert.False(t, tk.TS.IsZero())
		n++
	}
	assert.Equal(t, 5, n)
}

func TestReplayCancelled(t *testing.T) {
	rec, err := ParseRecording([]byte(recordingJSON))
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewReplayer(rec, 0, zerolog.Nop()).Run(ctx, make(chan model.Tick))
	assert.Error(t, err)
}
