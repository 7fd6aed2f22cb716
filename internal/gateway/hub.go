package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"tradesim/internal/strategy"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Envelope kinds pushed to websocket clients.
const (
	KindEvent    = "event"
	KindTrade    = "trade"
	KindStrategy = "strategy"
)

// Envelope wraps every message sent to websocket clients. Seq increases by
// one per broadcast so clients can detect gaps and backfill them through
// /api/events.
type Envelope struct {
	Type    string          `json:"type"`
	Symbol  string          `json:"symbol,omitempty"`
	Seq     int64           `json:"seq"`
	TS      time.Time       `json:"ts"`
	Initial bool            `json:"initial,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Hub manages websocket clients and fans broadcasts out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  map[string]Envelope // last event envelope per symbol
	seq     int64

	replay  *ReplayBuffer
	Latency *LatencyTracker
	now     func() time.Time
	log     zerolog.Logger

	// OnClients is called with the client count after every change.
	OnClients func(n int)
}

// NewHub creates a Hub keeping replaySize envelopes for backfill.
func NewHub(replaySize int, logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		latest:  make(map[string]Envelope),
		replay:  NewReplayBuffer(replaySize),
		Latency: NewLatencyTracker(10000),
		now:     time.Now,
		log:     logger.With().Str("component", "hub").Logger(),
	}
}

// Run broadcasts engine events until ctx is cancelled or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan strategy.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.BroadcastEvent(ev)
		}
	}
}

// BroadcastEvent sends one engine event and, when it traded, a trade
// envelope as well.
func (h *Hub) BroadcastEvent(ev strategy.Event) {
	if !ev.TS.IsZero() {
		h.Latency.Record(float64(h.now().Sub(ev.TS).Microseconds()) / 1000.0)
	}
	h.Broadcast(KindEvent, ev.Symbol, ev)
	if ev.Trade != nil {
		h.Broadcast(KindTrade, ev.Symbol, ev.Trade)
	}
}

// Broadcast encodes data in an envelope and queues it for every client
// subscribed to symbol. Clients whose queue is full miss the message.
func (h *Hub) Broadcast(kind, symbol string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Str("type", kind).Msg("encode broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	env := Envelope{Type: kind, Symbol: symbol, Seq: h.seq, TS: h.now().UTC(), Data: raw}
	buf, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Msg("encode envelope")
		return
	}
	if kind == KindEvent {
		h.latest[symbol] = env
	}
	// pushed and fanned out under the lock so every client sees seq order
	h.replay.Push(env.Seq, buf)
	for c := range h.clients {
		if !c.wants(symbol) {
			continue
		}
		select {
		case c.send <- buf:
		default:
			c.dropped.Add(1)
		}
	}
}

// Register upgrades conn into a client. With since > 0 the client first
// receives every buffered envelope after that seq; otherwise the latest
// event of every symbol.
func (h *Hub) Register(conn *websocket.Conn, since int64) *Client {
	c := newClient(h, conn)
	h.add(c, since)
	go c.writePump()
	go c.readPump()
	return c
}

// add queues c's initial state and registers it under one lock, so no live
// broadcast is queued ahead of the backfill.
func (h *Hub) add(c *Client, since int64) {
	h.mu.Lock()
	for _, b := range h.initialState(since) {
		c.enqueue(b)
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", n).Msg("ws client connected")
	if h.OnClients != nil {
		h.OnClients(n)
	}
}

// remove unregisters c and closes its queue. Safe to call more than once.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", n).Msg("ws client disconnected")
	if h.OnClients != nil {
		h.OnClients(n)
	}
}

// initialState is what a new client receives before live broadcasts.
// Caller holds h.mu.
func (h *Hub) initialState(since int64) [][]byte {
	if since > 0 {
		raw, complete := h.replay.Since(since)
		if !complete {
			h.log.Debug().Int64("since", since).Msg("replay gap, client must refetch state")
		}
		return raw
	}
	latest := h.latestEnvelopes()
	out := make([][]byte, 0, len(latest))
	for _, env := range latest {
		env.Initial = true
		if b, err := json.Marshal(env); err == nil {
			out = append(out, b)
		}
	}
	return out
}

// Since returns buffered envelopes after seq for gap backfill.
func (h *Hub) Since(seq int64) ([]json.RawMessage, bool) {
	raw, complete := h.replay.Since(seq)
	out := make([]json.RawMessage, len(raw))
	for i, b := range raw {
		out[i] = b
	}
	return out, complete
}

// latestEnvelopes returns the last event envelope of every symbol, sorted by
// symbol. Caller holds h.mu.
func (h *Hub) latestEnvelopes() []Envelope {
	out := make([]Envelope, 0, len(h.latest))
	for _, env := range h.latest {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Seq returns the sequence number of the last broadcast.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
