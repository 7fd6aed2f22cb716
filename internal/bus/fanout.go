// Package bus distributes engine events to independent consumers.
package bus

import (
	"context"
	"sync"
)

// FanOut broadcasts values from one input channel to every subscriber. A
// subscriber whose buffer is full misses the value instead of stalling the
// others.
type FanOut[T any] struct {
	mu      sync.RWMutex
	outputs []subscriber[T]
	bufSize int

	// OnDrop is called with the subscriber name when a value is dropped.
	OnDrop func(name string)
}

type subscriber[T any] struct {
	name string
	ch   chan T
}

// New creates a FanOut whose subscriber channels buffer bufSize values.
func New[T any](bufSize int) *FanOut[T] {
	return &FanOut[T]{bufSize: bufSize}
}

// Subscribe registers a named consumer. Subscribe before calling Run.
func (f *FanOut[T]) Subscribe(name string) <-chan T {
	ch := make(chan T, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, subscriber[T]{name: name, ch: ch})
	f.mu.Unlock()
	return ch
}

// Run forwards input until ctx is cancelled or input is closed, then closes
// every subscriber channel.
func (f *FanOut[T]) Run(ctx context.Context, input <-chan T) {
	defer func() {
		f.mu.RLock()
		for _, s := range f.outputs {
			close(s.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for _, s := range f.outputs {
				select {
				case s.ch <- v:
				default:
					if f.OnDrop != nil {
						f.OnDrop(s.name)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat is the fill level of one subscriber channel.
type ChannelStat struct {
	Name string `json:"name"`
	Len  int    `json:"len"`
	Cap  int    `json:"cap"`
}

// ChannelStats reports each subscriber's buffer usage.
func (f *FanOut[T]) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, s := range f.outputs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
