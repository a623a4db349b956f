package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(NewEvent(SessionStatus, "test"))

	select {
	case evt := <-ch:
		if evt.Kind != "session.status_changed" {
			t.Errorf("got kind %q, want session.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed"})
	b.Publish(Event{Kind: "sync.connected"})

	select {
	case evt := <-ch:
		if evt.Kind != "sync.connected" {
			t.Errorf("got kind %q, want sync.connected", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: "session.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}

func TestMatrixNamespaceSeesTimelineAndDecrypted(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("matrix.", 4)
	defer unsub()

	b.Publish(NewEvent(MatrixTimeline, "a"))
	b.Publish(NewEvent(TimelineChanged, "!r"))
	b.Publish(NewEvent(MatrixDecrypted, "b"))

	var kinds []string
	for len(kinds) < 2 {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", kinds)
		}
	}
	if kinds[0] != MatrixTimeline || kinds[1] != MatrixDecrypted {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestSubscribeFuncFiltersBeforeBuffering(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeFunc(func(kind string) bool { return kind != MatrixTimeline }, 1)

	b.Publish(NewEvent(MatrixTimeline, "raw"))
	b.Publish(NewEvent(RoomsChanged, nil))
	if evt := <-ch; evt.Kind != RoomsChanged {
		t.Errorf("got %q, want %q", evt.Kind, RoomsChanged)
	}
	if b.Dropped() != 0 {
		t.Errorf("Dropped() = %d, filtered events must not count", b.Dropped())
	}
	if b.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d", b.Subscribers())
	}
	unsub()
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe", b.Subscribers())
	}
}
