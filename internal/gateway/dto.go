package gateway

import (
	"context"

	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/pattern"
	"tradesim/internal/portfolio"
	"tradesim/internal/store/sqlite"
	"tradesim/internal/strategy"

	"github.com/shopspring/decimal"
)

// OrderRequest is the body of POST /api/orders. Without a price the order
// fills at the asset's latest tick.
type OrderRequest struct {
	Symbol   string           `json:"symbol" validate:"required"`
	Side     model.Side       `json:"side" validate:"required,oneof=buy sell"`
	Quantity int64            `json:"quantity" validate:"gte=1"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// AssetView is one row of GET /api/assets.
type AssetView struct {
	model.Asset
	Price float64 `json:"price,omitempty"`
	Time  string  `json:"time,omitempty"`
}

// SummaryView is GET /api/portfolio/summary.
type SummaryView struct {
	portfolio.Summary
	Risk portfolio.RiskMetrics `json:"risk"`
}

// StrategyView is GET /api/strategy/:symbol.
type StrategyView struct {
	Symbol string               `json:"symbol"`
	Config model.StrategyConfig `json:"config"`
	Memory strategy.Memory      `json:"memory"`
	// Impact is the unrealized P/L of the symbol's holding at the latest
	// price, zero when not held.
	Impact decimal.Decimal `json:"impact"`
}

// IndicatorsView is GET /api/indicators/:symbol.
type IndicatorsView struct {
	Symbol  string             `json:"symbol"`
	Points  int                `json:"points"`
	Results []indicator.Result `json:"results"`
}

// AnalyticsView is GET /api/analytics/:symbol: fixed-window indicators plus
// the strategy's latest reading.
type AnalyticsView struct {
	Symbol     string             `json:"symbol"`
	Class      model.AssetClass   `json:"class"`
	Price      float64            `json:"price"`
	Time       string             `json:"time"`
	Points     int                `json:"points"`
	Indicators indicator.Snapshot `json:"indicators"`
	Pattern    *pattern.Info      `json:"pattern,omitempty"`
	Signal     strategy.Action    `json:"signal"`
	Reason     string             `json:"reason,omitempty"`
}

// EquityHistory reads the equity curve recorded by the scheduler.
type EquityHistory interface {
	EquitySnapshots(ctx context.Context, limit int) ([]sqlite.EquitySnapshot, error)
}

// RedisStats is the state of the Redis side channel.
type RedisStats struct {
	Breaker  string `json:"breaker"`
	Trips    int    `json:"trips"`
	Buffered int    `json:"buffered"`
	Dropped  int    `json:"dropped"`
}
