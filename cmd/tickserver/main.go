// cmd/tickserver is a demo websocket tick server. It runs the random-walk
// feed and broadcasts every tick, so a simulator started with
// FEED=websocket can be exercised without a real market data source.
//
// Each message is one JSON-encoded model.Tick:
//
//	{"symbol":"AAPL","point":{"time":"T-31","price":187.2},"candle":{...},"ts":"..."}
//
// Config (env vars):
//
//	TICK_SERVER_ADDR  listen address (default ":9001")
//	TICK_ASSETS       comma-separated symbols (default: whole universe)
//	TICK_INTERVAL     tick interval per asset (default "1s")
//	TICK_SEED         random seed (default: current time)
//	LOG_LEVEL         log level (default "info")
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"tradesim/internal/feed"
	"tradesim/internal/logger"
	"tradesim/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const clientBuffer = 256

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	dropped int64
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// broadcast drops msg for clients whose queue is full.
func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.dropped++
		}
	}
}

func (h *hub) stats() (clients int, dropped int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), h.dropped
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("upgrade failed")
			return
		}
		log.Info().Str("remote", r.RemoteAddr).Msg("client connected")

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Info().Str("remote", r.RemoteAddr).Msg("client disconnected")
		}()

		// Drain reads so close frames are noticed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister(conn)
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func broadcastTicks(ctx context.Context, h *hub, ticks <-chan model.Tick, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticks:
			b, err := json.Marshal(t)
			if err != nil {
				log.Error().Err(err).Str("symbol", t.Symbol).Msg("encode tick")
				continue
			}
			h.broadcast(b)
		}
	}
}

func main() {
	log, err := logger.Init(logger.Config{Service: "tickserver", Level: envOrDefault("LOG_LEVEL", "info"), Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[tickserver] %v\n", err)
		os.Exit(1)
	}

	addr := envOrDefault("TICK_SERVER_ADDR", ":9001")
	interval, err := time.ParseDuration(envOrDefault("TICK_INTERVAL", "1s"))
	if err != nil {
		log.Fatal().Err(err).Msg("TICK_INTERVAL")
	}
	seed, err := strconv.ParseInt(envOrDefault("TICK_SEED", strconv.FormatInt(time.Now().UnixNano(), 10)), 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("TICK_SEED")
	}
	assets, err := parseAssets(os.Getenv("TICK_ASSETS"))
	if err != nil {
		log.Fatal().Err(err).Msg("TICK_ASSETS")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHub()
	ticks := make(chan model.Tick, clientBuffer)
	walk := feed.NewRandomWalk(feed.RandomWalkConfig{
		Assets:   assets,
		Interval: interval,
		Seed:     seed,
		Logger:   log,
	})
	go walk.Run(ctx, ticks)
	go broadcastTicks(ctx, h, ticks, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(h, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		clients, dropped := h.stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"service": "tickserver",
			"clients": clients,
			"dropped": dropped,
		})
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info().Str("addr", addr).Int("assets", len(assets)).Dur("interval", interval).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}

// parseAssets resolves a comma-separated symbol list; empty means the whole
// universe.
func parseAssets(s string) ([]model.Asset, error) {
	if strings.TrimSpace(s) == "" {
		return model.Universe(), nil
	}
	var out []model.Asset
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" {
			continue
		}
		a, ok := model.LookupAsset(sym)
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q", sym)
		}
		out = append(out, a)
	}
	return out, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
