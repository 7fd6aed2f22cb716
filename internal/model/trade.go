package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Source records which call site originated a trade.
type Source string

const (
	SourceManual   Source = "manual"
	SourceStrategy Source = "strategy"
)

// Trade is an immutable record of an executed order. Total is the cash
// outlay for buys (price*qty + fee) and the proceeds for sells
// (price*qty - fee).
type Trade struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
	Source    Source          `json:"source"`
}

// CashDelta is the signed change to the cash balance caused by the trade.
func (t Trade) CashDelta() decimal.Decimal {
	if t.Side == SideBuy {
		return t.Total.Neg()
	}
	return t.Total
}
