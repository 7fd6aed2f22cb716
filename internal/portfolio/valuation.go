package portfolio

import (
	"tradesim/internal/model"

	"github.com/shopspring/decimal"
)

// Prices maps symbol to latest market price.
type Prices map[string]decimal.Decimal

// PositionView is a holding marked to market.
type PositionView struct {
	model.Holding
	MarketPrice  decimal.Decimal `json:"marketPrice"`
	MarketValue  decimal.Decimal `json:"marketValue"`
	UnrealizedPL decimal.Decimal `json:"unrealizedPL"`
	// Priced is false when no market price was known for the symbol; such
	// positions contribute nothing to market value or unrealized P/L.
	Priced bool `json:"priced"`
}

// AllocationSlice is one symbol's share of total market value.
type AllocationSlice struct {
	Symbol      string          `json:"symbol"`
	MarketValue decimal.Decimal `json:"marketValue"`
	Percent     float64         `json:"percent"`
}

// Summary is a point-in-time valuation of a portfolio.
type Summary struct {
	Cash          decimal.Decimal   `json:"cash"`
	MarketValue   decimal.Decimal   `json:"marketValue"`
	Equity        decimal.Decimal   `json:"equity"`
	RealizedPL    decimal.Decimal   `json:"realizedPL"`
	UnrealizedPL  decimal.Decimal   `json:"unrealizedPL"`
	TotalPL       decimal.Decimal   `json:"totalPL"`
	TotalTrades   int               `json:"totalTrades"`
	OpenPositions int               `json:"openPositions"`
	Positions     []PositionView    `json:"positions"`
	Allocation    []AllocationSlice `json:"allocation"`
}

// Valuate marks every holding in state to the given prices.
func Valuate(state model.PortfolioState, prices Prices) Summary {
	s := Summary{
		Cash:          state.CashBalance,
		RealizedPL:    state.RealizedPL,
		TotalTrades:   len(state.TradeHistory),
		OpenPositions: len(state.Holdings),
		Positions:     make([]PositionView, 0, len(state.Holdings)),
		Allocation:    []AllocationSlice{},
	}

	for _, h := range state.Holdings {
		pv := PositionView{Holding: h}
		if px, ok := prices[h.Symbol]; ok {
			pv.Priced = true
			pv.MarketPrice = px
			pv.MarketValue = h.MarketValue(px)
			pv.UnrealizedPL = h.UnrealizedPL(px)
		}
		s.MarketValue = s.MarketValue.Add(pv.MarketValue)
		s.UnrealizedPL = s.UnrealizedPL.Add(pv.UnrealizedPL)
		s.Positions = append(s.Positions, pv)
	}

	s.Equity = s.Cash.Add(s.MarketValue)
	s.TotalPL = s.RealizedPL.Add(s.UnrealizedPL)

	if s.MarketValue.IsPositive() {
		for _, pv := range s.Positions {
			if !pv.MarketValue.IsPositive() {
				continue
			}
			s.Allocation = append(s.Allocation, AllocationSlice{
				Symbol:      pv.Symbol,
				MarketValue: pv.MarketValue,
				Percent:     pv.MarketValue.Div(s.MarketValue).Mul(hundred).InexactFloat64(),
			})
		}
	}
	return s
}

// PositionImpact is the unrealized P/L of symbol at price, or zero when the
// symbol is not held.
func PositionImpact(state model.PortfolioState, symbol string, price decimal.Decimal) decimal.Decimal {
	h, ok := state.Holding(symbol)
	if !ok {
		return decimal.Zero
	}
	return h.UnrealizedPL(price)
}

// FloatPrices converts indicator-side float prices to ledger prices.
func FloatPrices(m map[string]float64) Prices {
	out := make(Prices, len(m))
	for sym, px := range m {
		out[sym] = decimal.NewFromFloat(px)
	}
	return out
}
