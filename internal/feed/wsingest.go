package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"tradesim/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSConfig configures a WSIngest.
type WSConfig struct {
	// URL of the tick server, e.g. "ws://localhost:9001/ws".
	URL string
	// ReconnectDelay is the initial delay before reconnecting. Defaults to 2s.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
	Logger            zerolog.Logger
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// WSIngest reads JSON-encoded model.Tick messages from a websocket server,
// such as cmd/tickserver, and forwards them.
type WSIngest struct {
	cfg WSConfig
	log zerolog.Logger

	// OnReconnect is called each time the connection drops.
	OnReconnect func()
	// OnDrop is called when out is full and a tick is discarded.
	OnDrop func(symbol string)
}

// NewWSIngest validates the URL and creates a client.
func NewWSIngest(cfg WSConfig) (*WSIngest, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("tick server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("tick server url: unsupported scheme %q", u.Scheme)
	}
	return &WSIngest{cfg: cfg, log: cfg.Logger.With().Str("component", "wsingest").Logger()}, nil
}

// Run connects and streams ticks into out, reconnecting with backoff, until
// ctx is cancelled.
func (ing *WSIngest) Run(ctx context.Context, out chan<- model.Tick) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := ing.runOnce(ctx, out)
		if err == nil {
			return nil
		}

		ing.log.Warn().Err(err).Dur("retry_in", delay).Msg("disconnected")
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay = min(delay*2, ing.cfg.MaxReconnectDelay)
	}
}

func (ing *WSIngest) runOnce(ctx context.Context, out chan<- model.Tick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ing.log.Info().Str("url", ing.cfg.URL).Msg("connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		tick, err := DecodeTick(raw)
		if err != nil {
			ing.log.Debug().Err(err).Bytes("raw", raw).Msg("skipping message")
			continue
		}

		select {
		case out <- tick:
		default:
			ing.log.Warn().Str("symbol", tick.Symbol).Msg("tick channel full, dropping tick")
			if ing.OnDrop != nil {
				ing.OnDrop(tick.Symbol)
			}
		}
	}
}

// DecodeTick parses one wire message and rejects ticks the engine cannot use.
func DecodeTick(raw []byte) (model.Tick, error) {
	var t model.Tick
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.Tick{}, fmt.Errorf("decode tick: %w", err)
	}
	switch {
	case t.Symbol == "":
		return model.Tick{}, fmt.Errorf("tick without symbol")
	case !model.ValidPrice(t.Point.Price):
		return model.Tick{}, fmt.Errorf("%s: invalid price %v", t.Symbol, t.Point.Price)
	case t.Point.Time == "":
		return model.Tick{}, fmt.Errorf("%s: missing time label", t.Symbol)
	case t.Candle != nil && !t.Candle.Valid():
		return model.Tick{}, fmt.Errorf("%s: inconsistent candle", t.Symbol)
	}
	if t.TS.IsZero() {
		t.TS = time.Now().UTC()
	}
	return t, nil
}
