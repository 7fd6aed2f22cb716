package ringbuf

import (
	"sync"
	"testing"

	"tradesim/internal/model"
)

func pt(i int) model.PricePoint {
	return model.PricePoint{Time: model.Label(i), Price: float64(100 + i)}
}

func TestWindow_PushSlice(t *testing.T) {
	w := New(4)

	if _, ok := w.Last(); ok {
		t.Fatal("empty window should have no last point")
	}
	w.Push(pt(1))
	w.Push(pt(2))

	if w.Len() != 2 {
		t.Fatalf("expected len=2, got %d", w.Len())
	}
	got := w.Slice()
	if got[0].Time != "T-1" || got[1].Time != "T-2" {
		t.Fatalf("unexpected order: %+v", got)
	}
	last, ok := w.Last()
	if !ok || last.Price != 102 {
		t.Fatalf("expected last=102, got %v ok=%v", last.Price, ok)
	}
}

func TestWindow_DropsOldest(t *testing.T) {
	w := New(3)
	for i := 1; i <= 3; i++ {
		if w.Push(pt(i)) {
			t.Fatalf("push %d should not evict", i)
		}
	}
	if !w.Push(pt(4)) {
		t.Fatal("push into full window should evict")
	}
	w.Push(pt(5))

	got := w.Slice()
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	for i, want := range []float64{103, 104, 105} {
		if got[i].Price != want {
			t.Fatalf("slot %d: expected %v, got %v", i, want, got[i].Price)
		}
	}
	if w.Evicted() != 2 {
		t.Fatalf("expected evicted=2, got %d", w.Evicted())
	}
}

func TestWindow_MinimumCapacity(t *testing.T) {
	if c := New(0).Cap(); c != 2 {
		t.Fatalf("expected cap=2, got %d", c)
	}
}

func TestWindow_SliceIsCopy(t *testing.T) {
	w := New(2)
	w.Push(pt(1))
	s := w.Slice()
	s[0].Price = -1
	if w.Slice()[0].Price != 101 {
		t.Fatal("mutating a slice must not change the window")
	}
}

func TestWindow_ConcurrentReaders(t *testing.T) {
	w := New(30)
	const N = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < N; i++ {
			w.Push(pt(i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < N/10; i++ {
				s := w.Slice()
				for j := 1; j < len(s); j++ {
					if s[j].Price != s[j-1].Price+1 {
						t.Errorf("history out of order: %v then %v", s[j-1].Price, s[j].Price)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if w.Len() != 30 {
		t.Fatalf("expected full window, got %d", w.Len())
	}
}
