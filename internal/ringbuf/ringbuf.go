// Package ringbuf provides the bounded price history kept per asset. Pushing
// into a full Window overwrites the oldest point, so the history always holds
// the most recent Cap() observations in arrival order.
package ringbuf

import (
	"sync"

	"tradesim/internal/model"
)

// Window is a fixed-capacity, drop-oldest ring of price points. One goroutine
// pushes; any number may read concurrently.
type Window struct {
	mu   sync.RWMutex
	buf  []model.PricePoint
	head int // next write position
	n    int

	evicted uint64
}

// New creates a window holding at most capacity points. Minimum capacity is 2,
// the least history a crossing check can use.
func New(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]model.PricePoint, capacity)}
}

// Push appends p, evicting the oldest point when full. It reports whether a
// point was evicted.
func (w *Window) Push(p model.PricePoint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf[w.head] = p
	w.head = (w.head + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
		return false
	}
	w.evicted++
	return true
}

// Slice returns a copy of the history, oldest first.
func (w *Window) Slice() []model.PricePoint {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.PricePoint, w.n)
	start := (w.head - w.n + len(w.buf)) % len(w.buf)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(start+i)%len(w.buf)]
	}
	return out
}

// Last returns the newest point.
func (w *Window) Last() (model.PricePoint, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.n == 0 {
		return model.PricePoint{}, false
	}
	return w.buf[(w.head-1+len(w.buf))%len(w.buf)], true
}

// Len returns the number of points held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.n
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Evicted returns how many points have been dropped to make room.
func (w *Window) Evicted() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.evicted
}
