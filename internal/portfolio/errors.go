package portfolio

import "errors"

var (
	// ErrInvalidOrder rejects non-positive quantities or prices, a negative
	// fee or an empty symbol.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInsufficientFunds rejects a buy whose total cost exceeds cash.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNoSuchHolding rejects a sell of a symbol that is not held.
	ErrNoSuchHolding = errors.New("no such holding")
	// ErrInsufficientQuantity rejects a sell larger than the holding.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

// Rejection maps a ledger error to a short reason label for metrics and
// API responses.
func Rejection(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidOrder):
		return "invalid_order"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNoSuchHolding):
		return "no_such_holding"
	case errors.Is(err, ErrInsufficientQuantity):
		return "insufficient_quantity"
	default:
		return "unknown"
	}
}
