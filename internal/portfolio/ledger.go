// Package portfolio owns the simulated account: the ledger that applies buy
// and sell orders, valuation of open holdings, and asynchronous persistence
// of ledger state.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"tradesim/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DefaultFeePct is the transaction cost charged on both sides, in percent.
var DefaultFeePct = decimal.RequireFromString("0.2")

// CommitFunc observes a successful ledger transition. It runs while the
// ledger lock is held, so it must not block or call back into the ledger.
type CommitFunc func(state model.PortfolioState, trade model.Trade)

// LedgerConfig configures a Ledger. Zero values fall back to defaults.
type LedgerConfig struct {
	// FeePct is the fee used by Execute, in percent of notional. Nil means
	// DefaultFeePct; an explicit zero trades without fees.
	FeePct *decimal.Decimal
	// Now stamps trades. Defaults to time.Now.
	Now func() time.Time
	// NewID generates trade ids. Defaults to random UUIDs.
	NewID func() string
	// Logger receives one line per accepted or rejected order.
	Logger zerolog.Logger
}

// Order is a request to trade at a fixed price.
type Order struct {
	Symbol   string          `json:"symbol"`
	Side     model.Side      `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Source   model.Source    `json:"source"`
}

// Ledger applies orders to a PortfolioState. It is the single writer of that
// state: every transition happens under one mutex and either applies fully or
// not at all. Manual and strategy orders share the same lock.
type Ledger struct {
	mu        sync.Mutex
	state     model.PortfolioState
	cfg       LedgerConfig
	fee       decimal.Decimal
	observers []CommitFunc
	log       zerolog.Logger
}

// NewLedger creates a ledger starting from initial.
func NewLedger(initial model.PortfolioState, cfg LedgerConfig) *Ledger {
	fee := DefaultFeePct
	if cfg.FeePct != nil {
		fee = *cfg.FeePct
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	state := initial.Clone()
	if state.Holdings == nil {
		state.Holdings = []model.Holding{}
	}
	if state.TradeHistory == nil {
		state.TradeHistory = []model.Trade{}
	}
	return &Ledger{
		state: state,
		cfg:   cfg,
		fee:   fee,
		log:   cfg.Logger.With().Str("component", "ledger").Logger(),
	}
}

// Observe registers fn to be called after every successful transition.
// Register observers before the ledger is shared.
func (l *Ledger) Observe(fn CommitFunc) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

// FeePct returns the configured fee percentage.
func (l *Ledger) FeePct() decimal.Decimal { return l.fee }

// State returns a deep copy of the current state.
func (l *Ledger) State() model.PortfolioState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

// Execute dispatches o with the configured fee.
func (l *Ledger) Execute(o Order) (model.Trade, error) {
	switch o.Side {
	case model.SideBuy:
		return l.ExecuteBuy(o.Symbol, o.Quantity, o.Price, l.fee, o.Source)
	case model.SideSell:
		return l.ExecuteSell(o.Symbol, o.Quantity, o.Price, l.fee, o.Source)
	default:
		return model.Trade{}, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
}

// ExecuteBuy buys qty units of symbol at price. The fee is
// price*qty*feePct/100 and the whole cost price*qty+fee must be covered by
// cash. The holding's average cost becomes the quantity-weighted mean of the
// old position and this fill.
func (l *Ledger) ExecuteBuy(symbol string, qty int64, price, feePct decimal.Decimal, src model.Source) (model.Trade, error) {
	if err := validate(symbol, qty, price, feePct); err != nil {
		l.reject(model.SideBuy, symbol, qty, price, err)
		return model.Trade{}, err
	}

	q := decimal.NewFromInt(qty)
	notional := price.Mul(q)
	fee := notional.Mul(feePct).Div(hundred)
	total := notional.Add(fee)

	l.mu.Lock()
	defer l.mu.Unlock()

	if total.GreaterThan(l.state.CashBalance) {
		err := fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, total.StringFixed(2), l.state.CashBalance.StringFixed(2))
		l.reject(model.SideBuy, symbol, qty, price, err)
		return model.Trade{}, err
	}

	holdings := make([]model.Holding, 0, len(l.state.Holdings)+1)
	found := false
	for _, h := range l.state.Holdings {
		if h.Symbol == symbol {
			oldQty := decimal.NewFromInt(h.Quantity)
			newQty := h.Quantity + qty
			h.AvgCost = h.AvgCost.Mul(oldQty).Add(notional).Div(decimal.NewFromInt(newQty))
			h.Quantity = newQty
			found = true
		}
		holdings = append(holdings, h)
	}
	if !found {
		holdings = append(holdings, model.Holding{Symbol: symbol, Quantity: qty, AvgCost: price})
	}

	trade := l.newTrade(symbol, model.SideBuy, qty, price, fee, total, src)
	l.commit(model.PortfolioState{
		CashBalance:  l.state.CashBalance.Sub(total),
		Holdings:     holdings,
		TradeHistory: prepend(trade, l.state.TradeHistory),
		RealizedPL:   l.state.RealizedPL,
	}, trade)
	return trade, nil
}

// ExecuteSell sells qty units of an existing holding at price. No partial
// fills: selling more than held is rejected. Proceeds are price*qty-fee and
// (price-avgCost)*qty-fee is booked as realized P/L. The remaining
// position keeps its average cost; a position sold down to zero is removed.
func (l *Ledger) ExecuteSell(symbol string, qty int64, price, feePct decimal.Decimal, src model.Source) (model.Trade, error) {
	if err := validate(symbol, qty, price, feePct); err != nil {
		l.reject(model.SideSell, symbol, qty, price, err)
		return model.Trade{}, err
	}

	q := decimal.NewFromInt(qty)
	notional := price.Mul(q)
	fee := notional.Mul(feePct).Div(hundred)
	proceeds := notional.Sub(fee)

	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.state.Holding(symbol)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoSuchHolding, symbol)
		l.reject(model.SideSell, symbol, qty, price, err)
		return model.Trade{}, err
	}
	if held.Quantity < qty {
		err := fmt.Errorf("%w: %s holds %d, sell %d", ErrInsufficientQuantity, symbol, held.Quantity, qty)
		l.reject(model.SideSell, symbol, qty, price, err)
		return model.Trade{}, err
	}

	realized := price.Sub(held.AvgCost).Mul(q).Sub(fee)

	holdings := make([]model.Holding, 0, len(l.state.Holdings))
	for _, h := range l.state.Holdings {
		if h.Symbol == symbol {
			h.Quantity -= qty
			if h.Quantity == 0 {
				continue
			}
		}
		holdings = append(holdings, h)
	}

	trade := l.newTrade(symbol, model.SideSell, qty, price, fee, proceeds, src)
	l.commit(model.PortfolioState{
		CashBalance:  l.state.CashBalance.Add(proceeds),
		Holdings:     holdings,
		TradeHistory: prepend(trade, l.state.TradeHistory),
		RealizedPL:   l.state.RealizedPL.Add(realized),
	}, trade)
	return trade, nil
}

// commit swaps in next and notifies observers. Caller holds l.mu.
func (l *Ledger) commit(next model.PortfolioState, trade model.Trade) {
	l.state = next
	l.log.Info().
		Str("id", trade.ID).
		Str("side", string(trade.Side)).
		Str("symbol", trade.Symbol).
		Int64("qty", trade.Quantity).
		Str("price", trade.Price.String()).
		Str("fee", trade.Fee.String()).
		Str("cash_delta", trade.CashDelta().StringFixed(2)).
		Str("cash", next.CashBalance.StringFixed(2)).
		Str("source", string(trade.Source)).
		Msg("trade executed")
	if len(l.observers) == 0 {
		return
	}
	snapshot := next.Clone()
	for _, fn := range l.observers {
		fn(snapshot, trade)
	}
}

func (l *Ledger) reject(side model.Side, symbol string, qty int64, price decimal.Decimal, err error) {
	l.log.Debug().
		Str("side", string(side)).
		Str("symbol", symbol).
		Int64("qty", qty).
		Str("price", price.String()).
		Str("reason", Rejection(err)).
		Err(err).
		Msg("order rejected")
}

func (l *Ledger) newTrade(symbol string, side model.Side, qty int64, price, fee, total decimal.Decimal, src model.Source) model.Trade {
	if src == "" {
		src = model.SourceManual
	}
	return model.Trade{
		ID:        l.cfg.NewID(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Fee:       fee,
		Total:     total,
		Timestamp: l.cfg.Now().UTC(),
		Source:    src,
	}
}

func validate(symbol string, qty int64, price, feePct decimal.Decimal) error {
	switch {
	case symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	case qty <= 0:
		return fmt.Errorf("%w: quantity %d must be positive", ErrInvalidOrder, qty)
	case !price.IsPositive():
		return fmt.Errorf("%w: price %s must be positive", ErrInvalidOrder, price)
	case feePct.IsNegative():
		return fmt.Errorf("%w: fee %s%% must not be negative", ErrInvalidOrder, feePct)
	}
	return nil
}

func prepend(t model.Trade, history []model.Trade) []model.Trade {
	out := make([]model.Trade, 0, len(history)+1)
	out = append(out, t)
	return append(out, history...)
}
