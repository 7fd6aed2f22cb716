package strategy

import (
	"fmt"

	"tradesim/internal/indicator"
	"tradesim/internal/model"
)

// rsiOverbought is the RSI level above which the overbought rule sells.
const rsiOverbought = 70.0

// Action is the outcome of evaluating a strategy's rules on one tick.
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Side maps a buy or sell action to the ledger side.
func (a Action) Side() (model.Side, bool) {
	switch a {
	case ActionBuy:
		return model.SideBuy, true
	case ActionSell:
		return model.SideSell, true
	}
	return "", false
}

// Point is the price and indicator snapshot of one tick.
type Point struct {
	Price    float64
	Snapshot indicator.Snapshot
}

// Decision is the action chosen for a tick and why.
type Decision struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Evaluate applies the enabled rules to the current tick and, when present,
// the tick before it.
//
// MA cross buys when price moves from at-or-below its moving average to
// above it, and sells on the mirror move. It needs a previous point and a
// defined average on both ticks. RSI overbought sells when RSI > 70. When a
// buy and a sell fire together the sell wins.
func Evaluate(cfg model.StrategyConfig, cur Point, prev *Point) Decision {
	var buy, sell Decision

	if cfg.Rules.MACross && prev != nil {
		curMA, curOK := cur.Snapshot.MovingAverage.Float()
		prevMA, prevOK := prev.Snapshot.MovingAverage.Float()
		if curOK && prevOK {
			switch {
			case prev.Price <= prevMA && cur.Price > curMA:
				buy = Decision{ActionBuy, fmt.Sprintf("price %.2f crossed above MA(%d) %.2f", cur.Price, cfg.MAPeriod, curMA)}
			case prev.Price >= prevMA && cur.Price < curMA:
				sell = Decision{ActionSell, fmt.Sprintf("price %.2f crossed below MA(%d) %.2f", cur.Price, cfg.MAPeriod, curMA)}
			}
		}
	}

	if cfg.Rules.RSIOverbought {
		if rsi, ok := cur.Snapshot.RSI.Float(); ok && rsi > rsiOverbought {
			sell = Decision{ActionSell, fmt.Sprintf("RSI(%d) %.1f > %.0f", cfg.RSIPeriod, rsi, rsiOverbought)}
		}
	}

	switch {
	case sell.Action == ActionSell:
		return sell
	case buy.Action == ActionBuy:
		return buy
	}
	return Decision{Action: ActionNone}
}
