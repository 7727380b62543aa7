package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a kind of event on the bus.
type EventType string

const (
	// EventTypeAlertTriggered fires when a watched region's change score
	// crosses its rule threshold on two consecutive polls.
	EventTypeAlertTriggered EventType = "region.alert.triggered"

	// Monitor lifecycle events.
	EventTypeMonitorStarted  EventType = "monitor.started"
	EventTypeMonitorStopped  EventType = "monitor.stopped"
	EventTypeMonitorReloaded EventType = "monitor.reloaded"

	// EventTypePipelineChanged fires when a rule's capture pipeline switches
	// between acquisition paths, which discards its comparison baseline.
	EventTypePipelineChanged EventType = "capture.pipeline.changed"

	// EventTypeError carries component failures worth surfacing.
	EventTypeError EventType = "error"
)

// Event is a system event with metadata. Data keys are event-specific.
type Event struct {
	ID        string
	Type      EventType
	Source    string
	Timestamp time.Time
	Data      map[string]interface{}
}

// Handler processes a single event.
type Handler func(Event)

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID int64

// EventBus is the pub/sub interface components depend on.
type EventBus interface {
	Subscribe(eventType EventType, handler Handler) SubscriptionID
	Unsubscribe(id SubscriptionID)
	Publish(event Event)
	PublishAsync(event Event)
	Stop()
}

// NewAlertTriggeredEvent creates an alert event for a rule whose region
// change score held above threshold.
func NewAlertTriggeredEvent(character, ruleID, label string, score float64, threshold int, methodTag string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTypeAlertTriggered,
		Source:    "monitor",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"character":  character,
			"rule_id":    ruleID,
			"label":      label,
			"score":      score,
			"threshold":  threshold,
			"method_tag": methodTag,
		},
	}
}

// NewMonitorStartedEvent creates a monitor started event.
func NewMonitorStartedEvent(ruleCount int, interval time.Duration) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTypeMonitorStarted,
		Source:    "monitor",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"rule_count":  ruleCount,
			"interval_ms": interval.Milliseconds(),
		},
	}
}

// NewMonitorStoppedEvent creates a monitor stopped event.
func NewMonitorStoppedEvent() Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTypeMonitorStopped,
		Source:    "monitor",
		Timestamp: time.Now(),
		Data:      map[string]interface{}{},
	}
}

// NewMonitorReloadedEvent creates a reload event after rules change on disk.
func NewMonitorReloadedEvent(ruleCount, enabledCount int) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTypeMonitorReloaded,
		Source:    "monitor",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"rule_count":    ruleCount,
			"enabled_count": enabledCount,
		},
	}
}

// NewPipelineChangedEvent creates an event recording a rule's capture path
// switch from one method tag to another.
func NewPipelineChangedEvent(ruleKey, previous, current string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTypePipelineChanged,
		Source:    "monitor",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"rule_key": ruleKey,
			"previous": previous,
			"current":  current,
		},
	}
}

// NewErrorEvent creates an error event from a component.
func NewErrorEvent(source string, err error, metadata map[string]interface{}) Event {
	data := map[string]interface{}{
		"error": err.Error(),
	}
	for k, v := range metadata {
		data[k] = v
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
