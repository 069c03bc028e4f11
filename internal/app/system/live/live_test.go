package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	var zero T
	return zero
}

func expectNone[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_LoadsImmediatelyAndOnNotify(t *testing.T) {
	h := NewHub(nil)
	var n atomic.Int64
	got := make(chan int64, 10)

	sub := Subscribe(h, []string{TopicNews}, func(ctx context.Context) (int64, error) {
		return n.Add(1), nil
	}, func(v int64) { got <- v }, nil)
	defer sub.Close()

	if v := recv(t, got); v != 1 {
		t.Fatalf("first delivery = %d, want 1", v)
	}

	h.Notify(TopicNews)
	if v := recv(t, got); v != 2 {
		t.Fatalf("second delivery = %d, want 2", v)
	}

	h.Notify(TopicNGOs) // other topic
	expectNone(t, got)
}

func TestSubscribe_ErrorGoesToOnError(t *testing.T) {
	h := NewHub(nil)
	boom := errors.New("boom")
	errs := make(chan error, 1)

	sub := Subscribe(h, []string{TopicNews}, func(ctx context.Context) ([]string, error) {
		return nil, boom
	}, func([]string) { t.Error("onUpdate must not run on error") }, func(err error) { errs <- err })
	defer sub.Close()

	if err := recv(t, errs); !errors.Is(err, boom) {
		t.Fatalf("onError got %v, want %v", err, boom)
	}
}

func TestClose_StopsDelivery(t *testing.T) {
	h := NewHub(nil)
	got := make(chan int, 10)

	sub := Subscribe(h, []string{Key(TopicMessages, "a_b")}, func(ctx context.Context) (int, error) {
		return 1, nil
	}, func(v int) { got <- v }, nil)

	recv(t, got)
	sub.Close()
	sub.Close() // idempotent

	if h.Count() != 0 {
		t.Errorf("Count() = %d after Close, want 0", h.Count())
	}

	h.Notify(Key(TopicMessages, "a_b"))
	expectNone(t, got)
}

func TestNotify_Coalesces(t *testing.T) {
	h := NewHub(nil)
	gate := make(chan struct{})
	var loads atomic.Int64
	got := make(chan int64, 10)

	sub := Subscribe(h, []string{TopicChats}, func(ctx context.Context) (int64, error) {
		n := loads.Add(1)
		if n == 2 {
			<-gate // hold the second load while more notifications arrive
		}
		return n, nil
	}, func(v int64) { got <- v }, nil)
	defer sub.Close()

	recv(t, got) // initial load

	h.Notify(TopicChats)
	time.Sleep(50 * time.Millisecond) // second load now blocked on gate
	for i := 0; i < 5; i++ {
		h.Notify(TopicChats)
	}
	close(gate)

	recv(t, got) // second
	recv(t, got) // one coalesced reload for the burst
	expectNone(t, got)

	if n := loads.Load(); n != 3 {
		t.Errorf("loads = %d, want 3", n)
	}
}

func TestSubscriptions_AreIndependent(t *testing.T) {
	h := NewHub(nil)
	a := make(chan int, 10)
	b := make(chan int, 10)
	load := func(ctx context.Context) (int, error) { return 0, nil }

	subA := Subscribe(h, []string{Key(TopicMessages, "x_y")}, load, func(v int) { a <- v }, nil)
	subB := Subscribe(h, []string{Key(TopicMessages, "x_y")}, load, func(v int) { b <- v }, nil)
	defer subB.Close()

	recv(t, a)
	recv(t, b)

	subA.Close()
	h.Notify(Key(TopicMessages, "x_y"))

	recv(t, b)
	expectNone(t, a)
}

func TestNotifyAll(t *testing.T) {
	h := NewHub(nil)
	got := make(chan string, 10)
	load := func(name string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) { return name, nil }
	}

	s1 := Subscribe(h, []string{TopicNews, TopicNGOs}, load("multi"), func(v string) { got <- v }, nil)
	s2 := Subscribe(h, []string{TopicChats}, load("chats"), func(v string) { got <- v }, nil)
	defer s1.Close()
	defer s2.Close()
	recv(t, got)
	recv(t, got)

	h.NotifyAll()
	seen := map[string]int{}
	seen[recv(t, got)]++
	seen[recv(t, got)]++
	expectNone(t, got)

	if seen["multi"] != 1 || seen["chats"] != 1 {
		t.Errorf("NotifyAll deliveries = %v, want one each", seen)
	}
}

func TestGroup_ClosesAll(t *testing.T) {
	h := NewHub(nil)
	load := func(ctx context.Context) (int, error) { return 0, nil }
	s1 := Subscribe(h, []string{TopicNews}, load, func(int) {}, nil)
	s2 := Subscribe(h, []string{TopicNGOs}, load, func(int) {}, nil)

	NewGroup(s1, s2).Close()

	if h.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.Count())
	}
}

func TestNilHub(t *testing.T) {
	var h *Hub
	h.Notify(TopicNews)
	h.NotifyAll()
	if h.Count() != 0 {
		t.Error("nil hub should report zero subscriptions")
	}

	got := make(chan int, 1)
	sub := Subscribe(h, nil, func(ctx context.Context) (int, error) { return 7, nil }, func(v int) { got <- v }, nil)
	defer sub.Close()
	if v := recv(t, got); v != 7 {
		t.Errorf("got %d, want 7", v)
	}

	var nilSub *Subscription
	nilSub.Close()
	var nilGroup *Group
	nilGroup.Close()
}
