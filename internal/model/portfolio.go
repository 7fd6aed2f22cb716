package model

import "github.com/shopspring/decimal"

// DefaultStartingCash is the balance of a fresh account.
var DefaultStartingCash = decimal.NewFromInt(100000)

// Holding is an open long position. Quantity is always positive; a holding
// that reaches zero is removed from the portfolio.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avgCost"`
}

// UnrealizedPL is the paper gain on the holding at the given market price.
func (h Holding) UnrealizedPL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(h.AvgCost).Mul(decimal.NewFromInt(h.Quantity))
}

// MarketValue is quantity times the given market price.
func (h Holding) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(h.Quantity))
}

// PortfolioState is the full ledger state. Holdings are unique by symbol and
// kept in insertion order; TradeHistory is newest first.
type PortfolioState struct {
	CashBalance  decimal.Decimal `json:"cashBalance"`
	Holdings     []Holding       `json:"holdings"`
	TradeHistory []Trade         `json:"tradeHistory"`
	RealizedPL   decimal.Decimal `json:"realizedPL"`
}

// DefaultPortfolioState is what a store returns when nothing was persisted.
func DefaultPortfolioState() PortfolioState {
	return PortfolioState{
		CashBalance:  DefaultStartingCash,
		Holdings:     []Holding{},
		TradeHistory: []Trade{},
		RealizedPL:   decimal.Zero,
	}
}

// Holding returns the position for symbol, if any.
func (s PortfolioState) Holding(symbol string) (Holding, bool) {
	for _, h := range s.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}

// Clone returns a deep copy so callers can never alias ledger-owned slices.
func (s PortfolioState) Clone() PortfolioState {
	out := PortfolioState{
		CashBalance:  s.CashBalance,
		RealizedPL:   s.RealizedPL,
		Holdings:     make([]Holding, len(s.Holdings)),
		TradeHistory: make([]Trade, len(s.TradeHistory)),
	}
	copy(out.Holdings, s.Holdings)
	copy(out.TradeHistory, s.TradeHistory)
	return out
}
