// cmd/backtest runs a recorded price series through the strategy engine with
// a fresh ledger and prints the resulting account, without live market data.
//
// Usage:
//
//	go run ./cmd/backtest --recording=testdata/session.json
//	go run ./cmd/backtest --db=data/tradesim.db --symbols=AAPL,BTC --ma=5
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tradesim/config"
	"tradesim/internal/feed"
	"tradesim/internal/logger"
	"tradesim/internal/model"
	"tradesim/internal/store/sqlite"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	defs, err := config.Default()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[backtest] %v\n", err)
		os.Exit(1)
	}

	recording := flag.String("recording", "", "Path to a JSON recording")
	dbPath := flag.String("db", "", "SQLite database with recorded ticks (used when --recording is empty)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to replay (default: all)")
	cash := flag.Float64("cash", defs.Portfolio.StartingCash, "Starting cash")
	fee := flag.Float64("fee", *defs.Portfolio.FeePct, "Fee in percent of notional")
	maPeriod := flag.Int("ma", defs.Strategy.MAPeriod, "Moving average period")
	rsiPeriod := flag.Int("rsi", defs.Strategy.RSIPeriod, "RSI period")
	qty := flag.Int64("qty", defs.Strategy.TradeQuantity, "Quantity per strategy trade")
	window := flag.Int("window", defs.Sim.Window, "Price history kept per asset")
	noRSI := flag.Bool("no-rsi-rule", false, "Disable the RSI overbought rule")
	level := flag.String("log", "warn", "Log level")
	flag.Parse()

	log, err := logger.Init(logger.Config{Service: "backtest", Level: *level, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[backtest] %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ticks, source, err := loadTicks(ctx, *recording, *dbPath, splitSymbols(*symbols), log)
	if err != nil {
		log.Fatal().Err(err).Msg("load ticks")
	}

	strat := defs.Strategy
	strat.MAPeriod = *maPeriod
	strat.RSIPeriod = *rsiPeriod
	strat.TradeQuantity = *qty
	strat.Rules.RSIOverbought = !*noRSI

	res, err := Run(ctx, ticks, Options{
		Cash:     decimal.NewFromFloat(*cash),
		FeePct:   decimal.NewFromFloat(*fee),
		Strategy: strat,
		Window:   *window,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("backtest")
	}
	printResult(source, res)
}

func loadTicks(ctx context.Context, recording, dbPath string, symbols []string, log zerolog.Logger) ([]model.Tick, string, error) {
	if recording != "" {
		rec, err := feed.LoadRecording(recording)
		if err != nil {
			return nil, "", err
		}
		return filterTicks(rec.Ticks, symbols), recording, nil
	}
	if dbPath == "" {
		return nil, "", fmt.Errorf("either --recording or --db is required")
	}
	db, err := sqlite.Open(sqlite.Config{DBPath: dbPath, Logger: log})
	if err != nil {
		return nil, "", err
	}
	defer db.Close()
	ticks, err := db.ReadTicks(ctx, symbols...)
	return ticks, dbPath, err
}

func filterTicks(ticks []model.Tick, symbols []string) []model.Tick {
	if len(symbols) == 0 {
		return ticks
	}
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	out := ticks[:0:0]
	for _, t := range ticks {
		if want[t.Symbol] {
			out = append(out, t)
		}
	}
	return out
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printResult(source string, r Result) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║          BACKTEST COMPLETE           ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Source:        %-20s ║\n", truncate(source, 20))
	fmt.Printf("║  Ticks:         %-20d ║\n", r.Ticks)
	fmt.Printf("║  Signals:       %-20d ║\n", r.Signals)
	fmt.Printf("║  Trades:        %-20d ║\n", r.Summary.TotalTrades)
	fmt.Printf("║  Rejections:    %-20d ║\n", r.TotalRejections())
	fmt.Printf("║  Cash:          %-20s ║\n", r.Summary.Cash.StringFixed(2))
	fmt.Printf("║  Equity:        %-20s ║\n", r.Summary.Equity.StringFixed(2))
	fmt.Printf("║  Realized P/L:  %-20s ║\n", r.Summary.RealizedPL.StringFixed(2))
	fmt.Printf("║  Unrealized:    %-20s ║\n", r.Summary.UnrealizedPL.StringFixed(2))
	fmt.Printf("║  Return:        %-20s ║\n", r.ReturnPct.StringFixed(2)+"%")
	fmt.Printf("║  Deployed:      %-20s ║\n", fmt.Sprintf("%.1f%%", r.Risk.CashUtilizationPct))
	fmt.Println("╚══════════════════════════════════════╝")

	for reason, n := range r.Rejections {
		fmt.Printf("  rejected %-20s %d\n", reason, n)
	}
	for _, p := range r.Summary.Positions {
		fmt.Printf("  %-6s qty=%-6d avg=%-12s value=%s\n",
			p.Symbol, p.Quantity, p.AvgCost.StringFixed(2), p.MarketValue.StringFixed(2))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}
