package bus

import (
	"context"
	"testing"
	"time"
)

type event struct {
	Symbol string
	Seq    int
}

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[event](10)
	out1 := fo.Subscribe("hub")
	out2 := fo.Subscribe("publisher")

	input := make(chan event, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- event{Symbol: "AAPL", Seq: 1}

	for i, out := range []<-chan event{out1, out2} {
		select {
		case ev := <-out:
			if ev.Symbol != "AAPL" || ev.Seq != 1 {
				t.Errorf("out%d: unexpected event %+v", i+1, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out waiting for event", i+1)
		}
	}
}

func TestFanOut_SlowConsumerDrops(t *testing.T) {
	fo := New[event](1)
	slow := fo.Subscribe("slow")
	fast := fo.Subscribe("fast")

	dropped := make(chan string, 10)
	fo.OnDrop = func(name string) { dropped <- name }

	input := make(chan event)
	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()

	input <- event{Seq: 1}
	<-fast
	input <- event{Seq: 2} // slow still holds Seq 1
	<-fast
	close(input)
	<-done

	if name := <-dropped; name != "slow" {
		t.Fatalf("expected drop for slow, got %s", name)
	}
	if ev := <-slow; ev.Seq != 1 {
		t.Fatalf("slow: expected first event, got %+v", ev)
	}
	if _, ok := <-slow; ok {
		t.Fatal("subscriber channel should be closed after Run returns")
	}

	stats := fo.ChannelStats()
	if len(stats) != 2 || stats[0].Name != "slow" || stats[0].Cap != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
