package events

import (
	"errors"
	"testing"
	"time"

	"github.com/eveapm/regionwatch/internal/logging"
)

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus(16, logging.Nop())
	defer bus.Stop()

	received := make(chan Event, 1)
	bus.Subscribe(EventTypeAlertTriggered, func(ev Event) {
		received <- ev
	})

	bus.Publish(NewAlertTriggeredEvent("Pilot Alpha", "local-spike", "Local", 37.5, 12, "internal_cropped_thumbnail:BitBlt(clientDC):192x96"))

	ev := waitForEvent(t, received)
	if ev.Type != EventTypeAlertTriggered {
		t.Errorf("event type = %q, want %q", ev.Type, EventTypeAlertTriggered)
	}
	if ev.ID == "" {
		t.Error("event has no ID")
	}
	if ev.Timestamp.IsZero() {
		t.Error("event has no timestamp")
	}
	if got := ev.Data["character"]; got != "Pilot Alpha" {
		t.Errorf("character = %v, want Pilot Alpha", got)
	}
	if got := ev.Data["score"]; got != 37.5 {
		t.Errorf("score = %v, want 37.5", got)
	}
}

func TestBusFillsMissingMetadata(t *testing.T) {
	bus := NewBus(16, logging.Nop())
	defer bus.Stop()

	received := make(chan Event, 1)
	bus.Subscribe(EventTypeMonitorStarted, func(ev Event) {
		received <- ev
	})

	bus.Publish(Event{Type: EventTypeMonitorStarted})

	ev := waitForEvent(t, received)
	if ev.ID == "" {
		t.Error("publish did not assign an ID")
	}
	if ev.Timestamp.IsZero() {
		t.Error("publish did not assign a timestamp")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(16, logging.Nop())
	defer bus.Stop()

	received := make(chan Event, 4)
	id := bus.Subscribe(EventTypeMonitorStopped, func(ev Event) {
		received <- ev
	})
	if got := bus.SubscriberCount(EventTypeMonitorStopped); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	bus.Unsubscribe(id)
	if got := bus.SubscriberCount(EventTypeMonitorStopped); got != 0 {
		t.Fatalf("subscriber count after unsubscribe = %d, want 0", got)
	}

	bus.Publish(NewMonitorStoppedEvent())

	select {
	case <-received:
		t.Error("unsubscribed handler still received an event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusSurvivesHandlerPanic(t *testing.T) {
	bus := NewBus(16, logging.Nop())
	defer bus.Stop()

	received := make(chan Event, 1)
	bus.Subscribe(EventTypeError, func(Event) {
		panic("handler exploded")
	})
	bus.Subscribe(EventTypeError, func(ev Event) {
		received <- ev
	})

	bus.Publish(NewErrorEvent("store", errors.New("disk full"), nil))

	ev := waitForEvent(t, received)
	if got := ev.Data["error"]; got != "disk full" {
		t.Errorf("error data = %v, want disk full", got)
	}
}

func TestBusStopDrainsQueue(t *testing.T) {
	bus := NewBus(16, logging.Nop())

	received := make(chan Event, 8)
	bus.Subscribe(EventTypeMonitorReloaded, func(ev Event) {
		received <- ev
	})

	for i := 0; i < 4; i++ {
		bus.Publish(NewMonitorReloadedEvent(4, 3))
	}
	bus.Stop()

	for i := 0; i < 4; i++ {
		waitForEvent(t, received)
	}
}
