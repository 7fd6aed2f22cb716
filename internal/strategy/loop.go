package strategy

import (
	"sync"
	"sync/atomic"

	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/portfolio"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// State is where a loop is within a tick. It returns to Idle between ticks.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateEvaluating:
		return "evaluating"
	case StateExecuting:
		return "executing"
	default:
		return "idle"
	}
}

// Memory is the only state a loop carries between ticks: the last signal
// that fired and the tick it fired on.
type Memory struct {
	LastSignal   Action `json:"lastSignal"`
	LastTickTime string `json:"lastTickTime"`
}

// Executor places strategy orders. *portfolio.Ledger satisfies it.
type Executor interface {
	Execute(o portfolio.Order) (model.Trade, error)
}

// Outcome is the result of one Loop.Tick.
type Outcome struct {
	Point    model.PricePoint
	Snapshot indicator.Snapshot
	Decision Decision
	// Fired is true when a non-none decision passed deduplication.
	Fired bool
	Trade *model.Trade
	// Err is the ledger rejection, if execution was attempted and failed.
	Err error
}

// Loop evaluates one asset's strategy once per tick. Ticks for the same loop
// must be delivered in order from a single goroutine; SetConfig and the
// accessors may be called from anywhere.
type Loop struct {
	symbol string
	exec   Executor
	log    zerolog.Logger

	mu  sync.Mutex
	cfg model.StrategyConfig
	mem Memory

	state atomic.Int32
}

// NewLoop creates a loop for symbol. exec may be nil, in which case signals
// are reported but never executed.
func NewLoop(symbol string, cfg model.StrategyConfig, exec Executor, logger zerolog.Logger) *Loop {
	return &Loop{
		symbol: symbol,
		exec:   exec,
		cfg:    cfg,
		mem:    Memory{LastSignal: ActionNone},
		log:    logger.With().Str("component", "strategy").Str("symbol", symbol).Logger(),
	}
}

// Symbol returns the asset this loop trades.
func (l *Loop) Symbol() string { return l.symbol }

// Config returns the current configuration.
func (l *Loop) Config() model.StrategyConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// SetConfig replaces the configuration from the next tick on.
func (l *Loop) SetConfig(cfg model.StrategyConfig) {
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	l.log.Info().Interface("config", cfg).Msg("strategy config updated")
}

// Memory returns the signal memory.
func (l *Loop) Memory() Memory {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mem
}

// State returns the loop's current phase.
func (l *Loop) State() State { return State(l.state.Load()) }

// Tick evaluates the newest point of series, oldest first. The previous
// tick's snapshot is recomputed from series without its last point.
func (l *Loop) Tick(series []model.PricePoint) Outcome {
	if len(series) == 0 {
		return Outcome{Decision: Decision{Action: ActionNone}}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Store(int32(StateEvaluating))
	defer l.state.Store(int32(StateIdle))

	cfg := l.cfg
	params := indicator.StrategyParams(cfg)
	last := series[len(series)-1]
	cur := Point{Price: last.Price, Snapshot: indicator.Compute(series, params)}
	out := Outcome{Point: last, Snapshot: cur.Snapshot, Decision: Decision{Action: ActionNone}}

	if !cfg.Enabled {
		return out
	}

	var prev *Point
	if len(series) > 1 {
		before := series[:len(series)-1]
		prev = &Point{Price: before[len(before)-1].Price, Snapshot: indicator.Compute(before, params)}
	}

	out.Decision = Evaluate(cfg, cur, prev)
	if out.Decision.Action == ActionNone {
		return out
	}
	if out.Decision.Action == l.mem.LastSignal && last.Time == l.mem.LastTickTime {
		l.log.Debug().Str("tick", last.Time).Str("signal", string(out.Decision.Action)).Msg("duplicate signal skipped")
		return out
	}
	out.Fired = true

	l.log.Info().
		Str("tick", last.Time).
		Str("signal", string(out.Decision.Action)).
		Str("reason", out.Decision.Reason).
		Msg("signal fired")

	if cfg.AutoExecute && l.exec != nil {
		l.state.Store(int32(StateExecuting))
		side, _ := out.Decision.Action.Side()
		trade, err := l.exec.Execute(portfolio.Order{
			Symbol:   l.symbol,
			Side:     side,
			Quantity: cfg.TradeQuantity,
			Price:    decimal.NewFromFloat(last.Price),
			Source:   model.SourceStrategy,
		})
		if err != nil {
			out.Err = err
			l.log.Info().Str("tick", last.Time).Str("reason", portfolio.Rejection(err)).Msg("strategy order rejected")
		} else {
			out.Trade = &trade
		}
	}

	l.mem = Memory{LastSignal: out.Decision.Action, LastTickTime: last.Time}
	return out
}
