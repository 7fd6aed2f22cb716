package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendQueue  = 256
)

// Client is one websocket peer. Without subscriptions it receives every
// symbol.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subMu   sync.RWMutex
	symbols map[string]struct{}

	dropped atomic.Int64
}

// controlMsg is what clients send: SUBSCRIBE/UNSUBSCRIBE with symbols, or a
// bare {"ping": n}.
type controlMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendQueue),
		symbols: make(map[string]struct{}),
	}
}

// wants reports whether a broadcast for symbol goes to c. Messages without a
// symbol go to everyone.
func (c *Client) wants(symbol string) bool {
	if symbol == "" {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.symbols) == 0 {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

func (c *Client) subscribe(symbols []string) {
	c.subMu.Lock()
	for _, s := range symbols {
		c.symbols[strings.ToUpper(s)] = struct{}{}
	}
	c.subMu.Unlock()
}

func (c *Client) unsubscribe(symbols []string) {
	c.subMu.Lock()
	for _, s := range symbols {
		delete(c.symbols, strings.ToUpper(s))
	}
	c.subMu.Unlock()
}

func (c *Client) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		c.dropped.Add(1)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce whatever is queued into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg []byte) {
	var m controlMsg
	if json.Unmarshal(msg, &m) != nil {
		return
	}
	switch strings.ToUpper(m.Type) {
	case "SUBSCRIBE":
		c.subscribe(m.Symbols)
	case "UNSUBSCRIBE":
		c.unsubscribe(m.Symbols)
	default:
		if m.Ping > 0 {
			pong, _ := json.Marshal(map[string]any{
				"type":      "pong",
				"ping":      m.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.enqueue(pong)
		}
	}
}
