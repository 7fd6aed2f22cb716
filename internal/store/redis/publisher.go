package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"tradesim/internal/logger"
	"tradesim/internal/strategy"

	"github.com/rs/zerolog"
)

const (
	latestTTL         = 30 * time.Minute
	defaultMaxBuffer  = 10000
	defaultEventQueue = 256
)

// Message is one write of the publisher: a PUBLISH when Channel is set, a
// SET with TTL when Key is set.
type Message struct {
	Channel string
	Key     string
	Payload []byte
}

// PublishFunc sends a batch of messages in one round trip.
type PublishFunc func(ctx context.Context, msgs []Message) error

// Envelope is the JSON published for every engine event.
type Envelope struct {
	TraceID string         `json:"traceId"`
	Event   strategy.Event `json:"event"`
}

// Publisher streams engine events to Redis. While the breaker is open,
// messages are buffered locally (oldest dropped beyond the limit) and sent
// ahead of the next batch once Redis accepts writes again.
type Publisher struct {
	keys    Keys
	breaker *CircuitBreaker
	publish PublishFunc
	in      chan strategy.Event
	log     zerolog.Logger

	mu      sync.Mutex
	buffer  []Message
	maxBuf  int
	dropped int

	// OnBuffer is called when a batch is buffered instead of sent.
	OnBuffer func(n int)
	// OnFlush is called after buffered messages went out.
	OnFlush func(n int)
}

// NewPublisher returns a Publisher writing through c.
func NewPublisher(c *Client, maxBuffer int) *Publisher {
	p := newPublisher(c.keys, c.breaker, nil, maxBuffer, c.log)
	p.publish = c.pipelined
	return p
}

func newPublisher(keys Keys, cb *CircuitBreaker, fn PublishFunc, maxBuffer int, l zerolog.Logger) *Publisher {
	if maxBuffer <= 0 {
		maxBuffer = defaultMaxBuffer
	}
	return &Publisher{
		keys:    keys,
		breaker: cb,
		publish: fn,
		in:      make(chan strategy.Event, defaultEventQueue),
		maxBuf:  maxBuffer,
		log:     l.With().Str("component", "redis_publisher").Logger(),
	}
}

func (c *Client) pipelined(ctx context.Context, msgs []Message) error {
	pipe := c.rdb.Pipeline()
	for _, m := range msgs {
		if m.Key != "" {
			pipe.Set(ctx, m.Key, m.Payload, latestTTL)
		}
		if m.Channel != "" {
			pipe.Publish(ctx, m.Channel, m.Payload)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Enqueue hands ev to Run without blocking the engine. It reports false
// when the queue is full and the event was dropped.
func (p *Publisher) Enqueue(ev strategy.Event) bool {
	select {
	case p.in <- ev:
		return true
	default:
		return false
	}
}

// Run publishes queued events until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.in:
			p.Publish(ctx, ev)
		}
	}
}

// Publish encodes ev and sends it, buffering on failure.
func (p *Publisher) Publish(ctx context.Context, ev strategy.Event) {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(ev.Symbol, ev.TS))
	l := logger.FromContext(ctx, p.log)

	msgs, err := p.messages(logger.TraceID(ctx), ev)
	if err != nil {
		l.Error().Err(err).Msg("encode event")
		return
	}
	if err := p.send(ctx, msgs); err != nil && !errors.Is(err, ErrCircuitOpen) {
		l.Warn().Err(err).Msg("publish failed, buffered")
	}
}

func (p *Publisher) messages(traceID string, ev strategy.Event) ([]Message, error) {
	payload, err := json.Marshal(Envelope{TraceID: traceID, Event: ev})
	if err != nil {
		return nil, err
	}
	msgs := []Message{
		{Key: p.keys.Latest(ev.Symbol), Channel: p.keys.EventsChannel(), Payload: payload},
	}
	if ev.Trade != nil {
		msgs = append(msgs, Message{Channel: p.keys.TradesChannel(), Payload: payload})
	}
	return msgs, nil
}

func (p *Publisher) send(ctx context.Context, msgs []Message) error {
	p.mu.Lock()
	backlog := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	batch := append(backlog, msgs...)
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.publish(ctx, batch)
	})
	if err != nil {
		p.bufferFront(batch)
		return err
	}
	if len(backlog) > 0 && p.OnFlush != nil {
		p.OnFlush(len(backlog))
	}
	return nil
}

// bufferFront puts batch back ahead of anything buffered meanwhile and trims
// the oldest messages beyond maxBuf.
func (p *Publisher) bufferFront(batch []Message) {
	p.mu.Lock()
	p.buffer = append(batch, p.buffer...)
	if over := len(p.buffer) - p.maxBuf; over > 0 {
		p.buffer = p.buffer[over:]
		p.dropped += over
	}
	n := len(p.buffer)
	p.mu.Unlock()

	if p.OnBuffer != nil {
		p.OnBuffer(n)
	}
}

// Buffered returns how many messages wait for Redis to recover.
func (p *Publisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Dropped counts buffered messages discarded because the buffer was full.
func (p *Publisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
