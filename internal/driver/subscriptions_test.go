package driver

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfirmationResolvesOnce(t *testing.T) {
	c := NewConfirmation()
	c.Resolve(nil)
	c.Resolve(errors.New("second resolve must be ignored"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("expected the first (nil) resolution to win, got %v", err)
	}
}

func TestConfirmationWaitHonorsContext(t *testing.T) {
	c := NewConfirmation()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Wait(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestSubEventQueueDeliversEverythingToSlowConsumer is the lossless
// backpressure guarantee: pushing far more events than the sink can
// buffer must deliver every one of them, in order, to a consumer that
// drains slowly — nothing is dropped, and Push never blocks the pusher.
func TestSubEventQueueDeliversEverythingToSlowConsumer(t *testing.T) {
	const total = 1000
	sink := make(SubEventSink, 4)
	q := NewSubEventQueue(sink)
	defer q.Close()

	pushed := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			q.Push(SubEvent{Kind: SubEventAppeared, RetryCount: int64(i)})
		}
		close(pushed)
	}()

	select {
	case <-pushed:
	case <-time.After(5 * time.Second):
		t.Fatal("Push blocked: the queue must absorb a slow consumer without stalling the pusher")
	}

	for i := 0; i < total; i++ {
		select {
		case ev := <-sink:
			if ev.RetryCount != int64(i) {
				t.Fatalf("event %d delivered out of order (got %d)", i, ev.RetryCount)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("event %d never delivered: %d of %d received", i, i, total)
		}
	}
}

func TestSubEventQueueCloseClosesSink(t *testing.T) {
	sink := make(SubEventSink, 1)
	q := NewSubEventQueue(sink)
	q.Close()

	select {
	case _, ok := <-sink:
		if ok {
			t.Fatal("expected the sink to be closed without events")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sink never closed after queue Close")
	}
}

func TestSubEventQueueNilSafe(t *testing.T) {
	var q *SubEventQueue
	q.Push(SubEvent{Kind: SubConfirmed})
	q.Close()
}
