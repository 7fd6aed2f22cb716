// Package indicator provides technical indicator calculations over an
// ordered price series, oldest first.
//
// Every function recomputes from the series it is given; there is no
// incremental state between calls. When the series is too short the result
// is Undefined rather than an error, since that is the normal condition while
// a feed warms up.
package indicator

import (
	"encoding/json"
	"errors"
	"strconv"
)

// ErrInsufficientHistory is reported by Value.Result for undefined values.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Value is an indicator output that is either a real number or undefined.
type Value struct {
	v  float64
	ok bool
}

// Undefined is the sentinel returned when history is too short.
var Undefined = Value{}

// Of wraps a computed number.
func Of(v float64) Value { return Value{v: v, ok: true} }

// Float returns the number and whether it is defined.
func (v Value) Float() (float64, bool) { return v.v, v.ok }

// Ready reports whether the value is defined.
func (v Value) Ready() bool { return v.ok }

// Result converts the sentinel into the (value, error) form.
func (v Value) Result() (float64, error) {
	if !v.ok {
		return 0, ErrInsufficientHistory
	}
	return v.v, nil
}

func (v Value) String() string {
	if !v.ok {
		return "undefined"
	}
	return strconv.FormatFloat(v.v, 'f', 4, 64)
}

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}

// window returns the last n prices, or false if fewer than n exist.
func window(prices []float64, n int) ([]float64, bool) {
	if n <= 0 || len(prices) < n {
		return nil, false
	}
	return prices[len(prices)-n:], true
}
