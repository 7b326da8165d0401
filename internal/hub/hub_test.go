package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/metrics"
)

func recv(t *testing.T, sub *Subscriber) gesture.State {
	t.Helper()
	select {
	case s, ok := <-sub.C():
		if !ok {
			t.Fatal("channel closed")
		}
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state")
	}
	return gesture.State{}
}

func TestSubscribe_ReceivesCurrentFirst(t *testing.T) {
	h := New(gesture.DefaultState())
	h.Publish(gesture.State{Zoom: 10})

	sub := h.Subscribe()
	h.Publish(gesture.State{Zoom: 20})
	h.Publish(gesture.State{Zoom: 30})

	for _, want := range []float64{10, 20, 30} {
		if got := recv(t, sub); got.Zoom != want {
			t.Errorf("Zoom = %v, want %v", got.Zoom, want)
		}
	}
}

func TestSubscribe_InitialState(t *testing.T) {
	h := New(gesture.DefaultState())

	sub := h.Subscribe()

	if got := recv(t, sub); got != gesture.DefaultState() {
		t.Errorf("first state = %+v, want %+v", got, gesture.DefaultState())
	}
	if sub.ID() == "" {
		t.Error("subscriber id is empty")
	}
}

func TestSubscribe_UniqueIDs(t *testing.T) {
	h := New(gesture.DefaultState())
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := h.Subscribe().ID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if h.Len() != 50 {
		t.Errorf("Len() = %d, want 50", h.Len())
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	h := New(gesture.DefaultState())
	want := gesture.State{Zoom: 1, RotateX: 2, RotateY: 3}

	h.Publish(want)

	if got := h.Current(); got != want {
		t.Errorf("Current() = %+v, want %+v", got, want)
	}
}

func TestPublish_DropsSlowSubscriber(t *testing.T) {
	m := metrics.New()
	h := New(gesture.DefaultState(), WithBuffer(2), WithMetrics(m))

	slow := h.Subscribe()
	fast := h.Subscribe()

	ready := make(chan struct{})
	done := make(chan []gesture.State)
	go func() {
		got := []gesture.State{<-fast.C()}
		close(ready)
		for s := range fast.C() {
			got = append(got, s)
			if len(got) == 6 {
				break
			}
		}
		done <- got
	}()
	<-ready

	// slow already holds the join state; its buffer of 2 overflows on the
	// second publish.
	for i := 1; i <= 5; i++ {
		h.Publish(gesture.State{Zoom: float64(i)})
		time.Sleep(5 * time.Millisecond)
	}

	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after drop", h.Len())
	}

	var drained []gesture.State
	for s := range slow.C() {
		drained = append(drained, s)
	}
	if len(drained) != 2 {
		t.Errorf("slow subscriber got %d states before drop, want 2", len(drained))
	}

	select {
	case got := <-done:
		if got[len(got)-1].Zoom != 5 {
			t.Errorf("fast subscriber last zoom = %v, want 5", got[len(got)-1].Zoom)
		}
	case <-time.After(time.Second):
		t.Fatal("fast subscriber did not receive all states")
	}

	// Unsubscribing a dropped subscriber is a no-op.
	h.Unsubscribe(slow)
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestPublish_NeverBlocks(t *testing.T) {
	h := New(gesture.DefaultState(), WithBuffer(1))
	for i := 0; i < 10; i++ {
		h.Subscribe()
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(gesture.State{Zoom: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on unread subscribers")
	}
	if h.Current().Zoom != 99 {
		t.Errorf("Current().Zoom = %v, want 99", h.Current().Zoom)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := New(gesture.DefaultState())
	sub := h.Subscribe()

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}

	<-sub.C()
	if _, ok := <-sub.C(); ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestClose(t *testing.T) {
	h := New(gesture.DefaultState())
	a := h.Subscribe()
	b := h.Subscribe()

	h.Close()
	h.Close()

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	for _, sub := range []*Subscriber{a, b} {
		<-sub.C()
		if _, ok := <-sub.C(); ok {
			t.Errorf("subscriber %s channel still open", sub.ID())
		}
	}

	late := h.Subscribe()
	if _, ok := <-late.C(); ok {
		t.Error("subscriber on closed hub should get a closed channel")
	}

	h.Publish(gesture.State{Zoom: 7})
	if h.Current().Zoom != 7 {
		t.Error("Publish should still update current state after Close")
	}
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	h := New(gesture.DefaultState())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.Publish(gesture.State{Zoom: float64(i % 100)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			sub := h.Subscribe()
			h.Unsubscribe(sub)
		}
	}()
	wg.Wait()

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestPublishOrderWithConcurrentRemoval(t *testing.T) {
	const n = 500
	h := New(gesture.State{Zoom: -1}, WithBuffer(n+1))

	keeper := h.Subscribe()
	received := make(chan []float64, 1)
	go func() {
		var got []float64
		for s := range keeper.C() {
			got = append(got, s.Zoom)
			if len(got) == n+1 {
				break
			}
		}
		received <- got
	}()

	stop := make(chan struct{})
	var churn sync.WaitGroup
	for g := 0; g < 4; g++ {
		churn.Add(1)
		go func() {
			defer churn.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				sub := h.Subscribe()
				h.Unsubscribe(sub)
				h.Unsubscribe(sub)
			}
		}()
	}

	for i := 0; i < n; i++ {
		h.Publish(gesture.State{Zoom: float64(i)})
	}
	close(stop)
	churn.Wait()

	var got []float64
	select {
	case got = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for keeper")
	}

	if got[0] != -1 {
		t.Errorf("first state Zoom = %v, want the join state -1", got[0])
	}
	for i := 0; i < n; i++ {
		if got[i+1] != float64(i) {
			t.Fatalf("update %d: Zoom = %v, want %v", i, got[i+1], float64(i))
		}
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want only the keeper", h.Len())
	}
}
