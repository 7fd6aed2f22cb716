package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradesim/internal/model"

	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
)

func TestDecodeTick(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"ok", `{"symbol":"AAPL","point":{"time":"T-1","price":187.5}}`, false},
		{"with candle", `{"symbol":"AAPL","point":{"time":"T-1","price":10},"candle":{"open":9,"high":11,"low":8,"close":10}}`, false},
		{"garbage", `not json`, true},
		{"no symbol", `{"point":{"time":"T-1","price":1}}`, true},
		{"zero price", `{"symbol":"AAPL","point":{"time":"T-1","price":0}}`, true},
		{"overflowing price", `{"symbol":"AAPL","point":{"time":"T-1","price":1e400}}`, true},
		{"no label", `{"symbol":"AAPL","point":{"price":1}}`, true},
		{"bad candle", `{"symbol":"AAPL","point":{"time":"T-1","price":10},"candle":{"open":9,"high":8,"low":7,"close":10}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick, err := DecodeTick([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.False(t, tick.TS.IsZero())
		})
	}
}

func TestNewWSIngestRejectsScheme(t *testing.T) {
	_, err := NewWSIngest(WSConfig{URL: "http://localhost:9001/ws"})
	assert.Error(t, err)
}

func TestWSIngestReceivesTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":""}`))
		for i := 1; i <= 3; i++ {
			b, _ := json.Marshal(model.Tick{Symbol: "ETH", Point: model.PricePoint{Time: model.Label(i), Price: 3000 + float64(i)}})
			conn.WriteMessage(websocket.TextMessage, b)
		}
		// hold the connection until the client leaves
		conn.ReadMessage()
	}))
	defer srv.Close()

	ing, err := NewWSIngest(WSConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Logger: zerolog.Nop()})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Tick, 8)
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx, out) }()

	for i := 1; i <= 3; i++ {
		select {
		case tick := <-out:
			assert.Equal(t, model.Label(i), tick.Point.Time)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tick")
		}
	}
	cancel()
	assert.NoError(t, <-done)
}
