package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/portfolio"
	"tradesim/internal/strategy"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Options configures one backtest run.
type Options struct {
	Cash     decimal.Decimal
	FeePct   decimal.Decimal
	Strategy model.StrategyConfig
	Window   int
	Logger   zerolog.Logger
}

// Result is the outcome of a backtest.
type Result struct {
	Ticks      int
	Signals    int
	Rejections map[string]int
	Summary    portfolio.Summary
	Risk       portfolio.RiskMetrics
	// ReturnPct is equity against starting cash, in percent.
	ReturnPct decimal.Decimal
}

// TotalRejections sums rejections over all reasons.
func (r Result) TotalRejections() int {
	n := 0
	for _, c := range r.Rejections {
		n += c
	}
	return n
}

// Run feeds ticks one by one through a fresh engine and ledger. Trades are
// stamped with the time of the tick that caused them, so a run is
// reproducible apart from trade ids.
func Run(ctx context.Context, ticks []model.Tick, opts Options) (Result, error) {
	if !opts.Cash.IsPositive() {
		return Result{}, errors.New("starting cash must be positive")
	}

	var now time.Time
	initial := model.DefaultPortfolioState()
	initial.CashBalance = opts.Cash
	ledger := portfolio.NewLedger(initial, portfolio.LedgerConfig{
		FeePct: &opts.FeePct,
		Now:    func() time.Time { return now },
		Logger: opts.Logger,
	})

	engine := strategy.NewEngine(ledger, strategy.EngineConfig{Window: opts.Window, Logger: opts.Logger})
	res := Result{Rejections: map[string]int{}}
	for _, t := range ticks {
		if _, ok := model.LookupAsset(t.Symbol); !ok {
			continue
		}
		if _, err := engine.Config(t.Symbol); err != nil {
			engine.AddAsset(t.Symbol, opts.Strategy)
		}
	}

	for i, t := range ticks {
		if i%1000 == 0 && ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		now = t.TS
		ev, err := engine.Process(t)
		if errors.Is(err, strategy.ErrUnknownAsset) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("tick %d (%s): %w", i, t.Symbol, err)
		}
		res.Ticks++
		if ev.Fired {
			res.Signals++
		}
		if ev.Rejection != "" {
			res.Rejections[ev.Rejection]++
		}
	}

	res.Summary = portfolio.Valuate(ledger.State(), portfolio.FloatPrices(engine.Prices()))
	res.Risk = portfolio.Risk(res.Summary)
	res.ReturnPct = res.Summary.Equity.Sub(opts.Cash).Div(opts.Cash).Mul(decimal.NewFromInt(100))
	return res, nil
}
