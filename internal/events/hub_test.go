package events

import (
	"testing"

	"github.com/google/uuid"
)

func TestHub_PublishDeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("")
	defer hub.Unsubscribe(sub)

	event := New(EventSimulationStarted, uuid.New(), uuid.New(), map[string]any{
		"execution_order": 1,
	})
	hub.Publish(event)

	select {
	case got := <-sub.C():
		if got.Type != EventSimulationStarted {
			t.Errorf("Type = %q, want %q", got.Type, EventSimulationStarted)
		}
		if got.QueueID != event.QueueID {
			t.Errorf("QueueID = %v, want %v", got.QueueID, event.QueueID)
		}
		if got.Timestamp.IsZero() {
			t.Error("Timestamp should be set by New")
		}
	default:
		t.Fatal("expected event in subscriber channel")
	}
}

func TestHub_PrefixFiltering(t *testing.T) {
	hub := NewHub()
	simOnly := hub.Subscribe("simulation.")
	all := hub.Subscribe("")
	defer hub.Unsubscribe(simOnly)
	defer hub.Unsubscribe(all)

	hub.Publish(New(EventQueueProgress, uuid.New(), uuid.New(), nil))
	hub.Publish(New(EventSimulationCompleted, uuid.New(), uuid.New(), nil))

	// Prefix subscriber sees only simulation events.
	if got := len(simOnly.ch); got != 1 {
		t.Errorf("prefix subscriber received %d events, want 1", got)
	}
	if got := len(all.ch); got != 2 {
		t.Errorf("catch-all subscriber received %d events, want 2", got)
	}

	ev := <-simOnly.C()
	if ev.Type != EventSimulationCompleted {
		t.Errorf("Type = %q, want %q", ev.Type, EventSimulationCompleted)
	}
}

func TestHub_DropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("")
	defer hub.Unsubscribe(sub)

	queueID := uuid.New()
	negID := uuid.New()

	// Publish must never block, even past the buffer capacity.
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(New(EventSimulationRound, queueID, negID, map[string]any{"round": i}))
	}

	if got := len(sub.ch); got != subscriberBuffer {
		t.Errorf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("")

	hub.Unsubscribe(sub)
	if got := hub.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}

	// Channel is closed after unsubscribe.
	if _, ok := <-sub.C(); ok {
		t.Error("channel should be closed")
	}

	// Double unsubscribe must not panic.
	hub.Unsubscribe(sub)

	// Publishing with no subscribers is a no-op.
	hub.Publish(New(EventQueueCompleted, uuid.New(), uuid.New(), nil))
}

func TestHub_FanOutToMultipleSubscribers(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe("")
	second := hub.Subscribe("")
	defer hub.Unsubscribe(first)
	defer hub.Unsubscribe(second)

	hub.Publish(New(EventQueueCompleted, uuid.New(), uuid.New(), nil))

	if len(first.ch) != 1 || len(second.ch) != 1 {
		t.Errorf("fan-out delivered %d/%d events, want 1/1", len(first.ch), len(second.ch))
	}
}
