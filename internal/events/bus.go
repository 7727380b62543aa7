package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// subscription pairs a handler with its removable ID.
type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is a buffered asynchronous event bus. Handlers run on their own
// goroutines so a slow consumer never stalls the publisher or its peers.
type Bus struct {
	subscribers map[EventType][]subscription
	mu          sync.RWMutex

	eventQueue chan Event
	stopCh     chan struct{}
	wg         sync.WaitGroup

	nextSubID SubscriptionID
	subMu     sync.Mutex

	logger zerolog.Logger
}

// NewBus creates a bus with the given queue capacity and starts its
// dispatch goroutine.
func NewBus(bufferSize int, logger zerolog.Logger) *Bus {
	bus := &Bus{
		subscribers: make(map[EventType][]subscription),
		eventQueue:  make(chan Event, bufferSize),
		stopCh:      make(chan struct{}),
		nextSubID:   1,
		logger:      logger,
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for an event type and returns the
// subscription's ID.
func (b *Bus) Subscribe(eventType EventType, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subMu.Lock()
	subID := b.nextSubID
	b.nextSubID++
	b.subMu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{
		id:      subID,
		handler: handler,
	})

	return subID
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish queues an event, blocking until there is room. Missing IDs and
// timestamps are filled in.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventQueue <- event:
	case <-b.stopCh:
		b.logger.Warn().Str("type", string(event.Type)).Msg("dropped event, bus stopped")
	}
}

// PublishAsync queues an event without blocking the caller.
func (b *Bus) PublishAsync(event Event) {
	go b.Publish(event)
}

// Stop shuts the bus down after draining queued events.
func (b *Bus) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventQueue:
			b.dispatch(event)

		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventQueue:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs, exists := b.subscribers[event.Type]
	if !exists || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy handlers so the lock is not held while they run.
	handlers := make([]Handler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go b.safeHandlerCall(handler, event)
	}
}

func (b *Bus) safeHandlerCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Str("type", string(event.Type)).
				Interface("panic", r).Msg("event handler panicked")
		}
	}()

	handler(event)
}

// SubscriberCount returns the number of subscribers for an event type.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers[eventType])
}

// QueueSize returns the number of queued, undispatched events.
func (b *Bus) QueueSize() int {
	return len(b.eventQueue)
}
