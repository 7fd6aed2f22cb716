package gateway

import "sync"

// ReplayBuffer keeps the most recent broadcast envelopes, oldest evicted
// first, so reconnecting clients can backfill by sequence number.
type ReplayBuffer struct {
	mu    sync.RWMutex
	seqs  []int64
	data  [][]byte
	head  int // index of the oldest entry
	count int
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &ReplayBuffer{
		seqs: make([]int64, capacity),
		data: make([][]byte, capacity),
	}
}

// Push appends an envelope. Sequence numbers must be increasing.
func (rb *ReplayBuffer) Push(seq int64, envelope []byte) {
	cp := append([]byte(nil), envelope...)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := len(rb.seqs)
	idx := (rb.head + rb.count) % n
	if rb.count == n {
		idx = rb.head
		rb.head = (rb.head + 1) % n
	} else {
		rb.count++
	}
	rb.seqs[idx] = seq
	rb.data[idx] = cp
}

// Range returns envelopes with seq in [from, to], oldest first.
func (rb *ReplayBuffer) Range(from, to int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out [][]byte
	for i := 0; i < rb.count; i++ {
		idx := (rb.head + i) % len(rb.seqs)
		if s := rb.seqs[idx]; s >= from && s <= to {
			out = append(out, rb.data[idx])
		}
	}
	return out
}

// Since returns every envelope after seq, oldest first. complete is false
// when entries after seq were already evicted.
func (rb *ReplayBuffer) Since(seq int64) (envelopes [][]byte, complete bool) {
	rb.mu.RLock()
	oldest := int64(0)
	if rb.count > 0 {
		oldest = rb.seqs[rb.head]
	}
	rb.mu.RUnlock()

	envelopes = rb.Range(seq+1, int64(^uint64(0)>>1))
	return envelopes, oldest == 0 || oldest <= seq+1
}

// Len returns the number of entries currently in the buffer.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
