package indicator

import (
	"fmt"
	"strconv"
	"strings"
)

// Spec names one indicator to compute, e.g. {Type: "SMA", Period: 20}.
// K is only read by Bollinger specs.
type Spec struct {
	Type   string
	Period int
	K      float64
}

// Name returns the display name, e.g. "SMA_20".
func (s Spec) Name() string {
	return s.Type + "_" + strconv.Itoa(s.Period)
}

// Result is one named indicator output. Bollinger specs also fill Bands.
type Result struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
	Bands *Bands `json:"bands,omitempty"`
}

// Engine evaluates a fixed list of specs over any price series.
type Engine struct {
	specs []Spec
}

// NewEngine validates the specs and returns an Engine.
func NewEngine(specs []Spec) (*Engine, error) {
	for _, s := range specs {
		if s.Period <= 0 {
			return nil, fmt.Errorf("indicator %s: period must be positive", s.Name())
		}
		switch s.Type {
		case "SMA", "RSI", "VOL", "MOM", "BB":
		default:
			return nil, fmt.Errorf("unknown indicator type %q", s.Type)
		}
	}
	return &Engine{specs: specs}, nil
}

// Specs returns the configured specs.
func (e *Engine) Specs() []Spec { return e.specs }

// Process computes every spec over prices, in spec order.
func (e *Engine) Process(prices []float64) []Result {
	results := make([]Result, 0, len(e.specs))
	for _, s := range e.specs {
		r := Result{Name: s.Name()}
		switch s.Type {
		case "SMA":
			r.Value = MovingAverage(prices, s.Period)
		case "RSI":
			r.Value = RSI(prices, s.Period)
		case "VOL":
			r.Value = Volatility(prices, s.Period)
		case "MOM":
			r.Value = Momentum(prices, s.Period)
		case "BB":
			k := s.K
			if k == 0 {
				k = 2
			}
			b := Bollinger(prices, s.Period, k)
			r.Value = b.Mean
			r.Bands = &b
		}
		results = append(results, r)
	}
	return results
}

// ParseSpecs parses "TYPE:PERIOD[:K],..." such as "SMA:10,RSI:14,BB:20:2".
// Malformed entries are skipped.
func ParseSpecs(s string) []Spec {
	var specs []Spec
	for _, part := range strings.Split(s, ",") {
		tokens := strings.Split(strings.TrimSpace(part), ":")
		if len(tokens) < 2 {
			continue
		}
		period, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
		if err != nil || period <= 0 {
			continue
		}
		spec := Spec{Type: strings.ToUpper(strings.TrimSpace(tokens[0])), Period: period}
		if len(tokens) == 3 {
			if k, err := strconv.ParseFloat(strings.TrimSpace(tokens[2]), 64); err == nil {
				spec.K = k
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

// DefaultSpecs mirrors the analytics view.
func DefaultSpecs() []Spec {
	return []Spec{
		{Type: "SMA", Period: 10},
		{Type: "RSI", Period: 14},
		{Type: "VOL", Period: 12},
		{Type: "MOM", Period: 6},
		{Type: "BB", Period: 20, K: 2},
	}
}
