package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the ledger and strategy loops from concrete
// storage implementations (Redis, SQLite).

// PortfolioStore persists the ledger state. Load returns
// DefaultPortfolioState when nothing has been saved yet.
type PortfolioStore interface {
	LoadPortfolio(ctx context.Context) (PortfolioState, error)
	SavePortfolio(ctx context.Context, state PortfolioState) error
}

// TradeJournal is an append-only audit log of executed trades.
type TradeJournal interface {
	RecordTrade(ctx context.Context, t Trade) error
	Trades(ctx context.Context, limit int) ([]Trade, error)
}

// StrategyConfigStore persists per-symbol strategy settings.
type StrategyConfigStore interface {
	LoadStrategy(ctx context.Context, symbol string) (StrategyConfig, bool, error)
	SaveStrategy(ctx context.Context, symbol string, cfg StrategyConfig) error
}
