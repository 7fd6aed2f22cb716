package gateway

import (
	"strconv"
	"testing"
)

func fill(rb *ReplayBuffer, from, to int64) {
	for i := from; i <= to; i++ {
		rb.Push(i, []byte(strconv.FormatInt(i, 10)))
	}
}

func TestReplayBuffer_Range(t *testing.T) {
	rb := NewReplayBuffer(100)
	fill(rb, 1, 10)

	got := rb.Range(3, 7)
	if len(got) != 5 {
		t.Fatalf("Range(3,7): expected 5, got %d", len(got))
	}
	for i, e := range got {
		want := strconv.Itoa(i + 3)
		if string(e) != want {
			t.Errorf("entry[%d] = %s, want %s", i, e, want)
		}
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)
	fill(rb, 1, 8)

	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}
	got := rb.Range(1, 10)
	if len(got) != 5 {
		t.Fatalf("Range(1,10): expected 5, got %d", len(got))
	}
	if string(got[0]) != "4" || string(got[4]) != "8" {
		t.Errorf("expected 4..8, got %s..%s", got[0], got[4])
	}
}

func TestReplayBuffer_Since(t *testing.T) {
	rb := NewReplayBuffer(5)
	fill(rb, 1, 8)

	got, complete := rb.Since(5)
	if !complete || len(got) != 3 {
		t.Fatalf("Since(5): got %d complete=%v, want 3 complete", len(got), complete)
	}

	got, complete = rb.Since(1)
	if complete {
		t.Error("Since(1) should report the gap left by evicted entries")
	}
	if len(got) != 5 {
		t.Errorf("Since(1): expected the 5 retained entries, got %d", len(got))
	}
}

func TestReplayBuffer_CopiesInput(t *testing.T) {
	rb := NewReplayBuffer(2)
	buf := []byte("abc")
	rb.Push(1, buf)
	buf[0] = 'x'
	if got := rb.Range(1, 1); string(got[0]) != "abc" {
		t.Errorf("buffer aliased caller slice: %s", got[0])
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	rb := NewReplayBuffer(10)
	got, complete := rb.Since(0)
	if len(got) != 0 || !complete {
		t.Fatalf("empty buffer: got %d complete=%v", len(got), complete)
	}
}
