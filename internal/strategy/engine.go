// Package strategy turns indicator readings into ledger orders.
//
// A Loop holds the rules and signal memory for one asset. The Engine owns a
// Loop, a bounded price history and the last candle for every asset, and
// processes each asset's ticks in order on that asset's own goroutine.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/pattern"
	"tradesim/internal/portfolio"
	"tradesim/internal/ringbuf"

	"github.com/rs/zerolog"
)

// ErrUnknownAsset is returned for ticks or lookups of an unregistered symbol.
var ErrUnknownAsset = errors.New("unknown asset")

const (
	defaultWindow     = 30
	defaultQueueDepth = 64
)

// Event is everything the engine derived from one tick.
type Event struct {
	Symbol    string             `json:"symbol"`
	Point     model.PricePoint   `json:"point"`
	Candle    *model.Candle      `json:"candle,omitempty"`
	Pattern   pattern.Pattern    `json:"pattern"`
	Snapshot  indicator.Snapshot `json:"indicators"`
	Signal    Action             `json:"signal"`
	Reason    string             `json:"reason,omitempty"`
	Fired     bool               `json:"fired"`
	Trade     *model.Trade       `json:"trade,omitempty"`
	Rejection string             `json:"rejection,omitempty"`
	TS        time.Time          `json:"ts"`

	// Elapsed is how long the tick took to evaluate.
	Elapsed time.Duration `json:"-"`
}

// EngineConfig configures an Engine. Zero values fall back to defaults.
type EngineConfig struct {
	// Window is the price history retained per asset.
	Window int
	// QueueDepth buffers ticks per asset inside Run.
	QueueDepth int
	Logger     zerolog.Logger
	// OnEvent, if set, is called after every processed tick.
	OnEvent func(Event)
}

type asset struct {
	loop   *Loop
	window *ringbuf.Window

	mu         sync.RWMutex
	prevCandle *model.Candle
	latest     Event
	seen       bool
}

// Engine runs the strategy loops of a set of assets against one executor.
type Engine struct {
	cfg  EngineConfig
	exec Executor
	log  zerolog.Logger

	mu     sync.RWMutex
	assets map[string]*asset
}

// NewEngine creates an engine whose loops place orders through exec.
func NewEngine(exec Executor, cfg EngineConfig) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	return &Engine{
		cfg:    cfg,
		exec:   exec,
		log:    cfg.Logger.With().Str("component", "engine").Logger(),
		assets: make(map[string]*asset),
	}
}

// AddAsset registers symbol with its strategy configuration. Adding an
// existing symbol replaces its configuration but keeps its history.
func (e *Engine) AddAsset(symbol string, cfg model.StrategyConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a, ok := e.assets[symbol]; ok {
		a.loop.SetConfig(cfg)
		return
	}
	e.assets[symbol] = &asset{
		loop:   NewLoop(symbol, cfg, e.exec, e.cfg.Logger),
		window: ringbuf.New(e.cfg.Window),
	}
	e.log.Debug().Str("symbol", symbol).Int("window", e.cfg.Window).Msg("asset registered")
}

// Symbols lists registered assets in sorted order.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.assets))
	for s := range e.assets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) asset(symbol string) (*asset, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.assets[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return a, nil
}

// Config returns the strategy configuration of symbol.
func (e *Engine) Config(symbol string) (model.StrategyConfig, error) {
	a, err := e.asset(symbol)
	if err != nil {
		return model.StrategyConfig{}, err
	}
	return a.loop.Config(), nil
}

// SetConfig updates symbol's strategy from its next tick on.
func (e *Engine) SetConfig(symbol string, cfg model.StrategyConfig) error {
	a, err := e.asset(symbol)
	if err != nil {
		return err
	}
	a.loop.SetConfig(cfg)
	return nil
}

// Memory returns symbol's signal memory.
func (e *Engine) Memory(symbol string) (Memory, error) {
	a, err := e.asset(symbol)
	if err != nil {
		return Memory{}, err
	}
	return a.loop.Memory(), nil
}

// Series returns a copy of symbol's price history, oldest first.
func (e *Engine) Series(symbol string) ([]model.PricePoint, error) {
	a, err := e.asset(symbol)
	if err != nil {
		return nil, err
	}
	return a.window.Slice(), nil
}

// Latest returns the most recent event for symbol.
func (e *Engine) Latest(symbol string) (Event, bool) {
	a, err := e.asset(symbol)
	if err != nil {
		return Event{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.seen
}

// WindowStat is the fill level of one asset's price history.
type WindowStat struct {
	Symbol  string `json:"symbol"`
	Len     int    `json:"len"`
	Cap     int    `json:"cap"`
	Evicted uint64 `json:"evicted"`
}

// Windows reports history usage per asset, sorted by symbol.
func (e *Engine) Windows() []WindowStat {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]WindowStat, 0, len(e.assets))
	for s, a := range e.assets {
		out = append(out, WindowStat{Symbol: s, Len: a.window.Len(), Cap: a.window.Cap(), Evicted: a.window.Evicted()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Prices returns the latest known price of every asset that has ticked.
func (e *Engine) Prices() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.assets))
	for s, a := range e.assets {
		if p, ok := a.window.Last(); ok {
			out[s] = p.Price
		}
	}
	return out
}

// Process appends the tick to its asset's history and evaluates it. Calls for
// the same symbol must not overlap.
func (e *Engine) Process(t model.Tick) (Event, error) {
	a, err := e.asset(t.Symbol)
	if err != nil {
		return Event{}, err
	}
	if !model.ValidPrice(t.Point.Price) {
		return Event{}, fmt.Errorf("%s: invalid price %v at %s", t.Symbol, t.Point.Price, t.Point.Time)
	}
	start := time.Now()

	a.window.Push(t.Point)
	out := a.loop.Tick(a.window.Slice())

	ev := Event{
		Symbol:   t.Symbol,
		Point:    t.Point,
		Candle:   t.Candle,
		Snapshot: out.Snapshot,
		Signal:   out.Decision.Action,
		Reason:   out.Decision.Reason,
		Fired:    out.Fired,
		Trade:    out.Trade,
		TS:       t.TS,
	}
	if out.Err != nil {
		ev.Rejection = portfolio.Rejection(out.Err)
	}
	if ev.TS.IsZero() {
		ev.TS = start.UTC()
	}

	a.mu.Lock()
	if t.Candle != nil {
		ev.Pattern = pattern.Classify(*t.Candle, a.prevCandle)
		c := *t.Candle
		a.prevCandle = &c
	}
	ev.Elapsed = time.Since(start)
	a.latest = ev
	a.seen = true
	a.mu.Unlock()

	if e.cfg.OnEvent != nil {
		e.cfg.OnEvent(ev)
	}
	return ev, nil
}

// Run consumes ticks until ctx is cancelled or in is closed, sending one
// Event per tick to out. Each asset gets its own goroutine, so assets are
// evaluated concurrently while every asset sees its ticks in arrival order.
// out is closed when Run returns.
func (e *Engine) Run(ctx context.Context, in <-chan model.Tick, out chan<- Event) {
	defer close(out)

	var wg sync.WaitGroup
	queues := make(map[string]chan model.Tick)
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-in:
			if !ok {
				return
			}
			q, ok := queues[t.Symbol]
			if !ok {
				if _, err := e.asset(t.Symbol); err != nil {
					e.log.Warn().Str("symbol", t.Symbol).Msg("tick for unregistered asset dropped")
					continue
				}
				q = make(chan model.Tick, e.cfg.QueueDepth)
				queues[t.Symbol] = q
				wg.Add(1)
				go func() {
					defer wg.Done()
					e.worker(ctx, q, out)
				}()
			}
			select {
			case q <- t:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (e *Engine) worker(ctx context.Context, q <-chan model.Tick, out chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-q:
			if !ok {
				return
			}
			ev, err := e.Process(t)
			if err != nil {
				e.log.Warn().Err(err).Msg("tick rejected")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
