package gateway

import (
	"math"
	"slices"
	"sync"
)

// LatencySummary reports tick-to-broadcast latency percentiles in ms.
type LatencySummary struct {
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// LatencyTracker keeps the last N latency samples.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  bool
}

// NewLatencyTracker creates a tracker that holds the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds a latency sample in milliseconds. Negative samples (clock
// skew between feed and gateway) are ignored.
func (lt *LatencyTracker) Record(ms float64) {
	if ms < 0 {
		return
	}
	lt.mu.Lock()
	lt.samples[lt.next] = ms
	lt.next++
	if lt.next == len(lt.samples) {
		lt.next = 0
		lt.filled = true
	}
	lt.mu.Unlock()
}

// Summary computes the percentiles over the retained samples.
func (lt *LatencyTracker) Summary() LatencySummary {
	lt.mu.Lock()
	n := lt.next
	if lt.filled {
		n = len(lt.samples)
	}
	sorted := slices.Clone(lt.samples[:n])
	lt.mu.Unlock()

	if n == 0 {
		return LatencySummary{}
	}
	slices.Sort(sorted)
	return LatencySummary{
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Count: n,
	}
}

// percentile linearly interpolates the p-th quantile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
