// Package feed produces per-asset price ticks for the strategy engine: a
// seeded random walk for demos, a replay of recorded series, and a websocket
// client for an external tick server.
package feed

import (
	"context"

	"tradesim/internal/model"
)

// Source delivers ticks into out until ctx is cancelled or the source is
// exhausted. Ticks of one asset are sent in order.
type Source interface {
	Run(ctx context.Context, out chan<- model.Tick) error
}

// send delivers t unless ctx ends first.
func send(ctx context.Context, out chan<- model.Tick, t model.Tick) bool {
	select {
	case out <- t:
		return true
	case <-ctx.Done():
		return false
	}
}
