package services

import (
	"log"
	"sync"

	"frontdesk/internal/models"
)

// maxPendingEvents is the maximum number of important events buffered while no
// supervisor is subscribed.
const maxPendingEvents = 50

// importantEventTypes are worth buffering until a supervisor connects.
var importantEventTypes = map[string]bool{
	models.EventEscalationCreated:  true,
	models.EventEscalationResolved: true,
}

// EventBus is an in-memory fan-out of escalation and knowledge events to
// supervisor streams and in-process listeners.
//
// Events published locally are also handed to the forwarder (Redis pub/sub when
// configured). Events arriving from other instances go through PublishLocal so
// they are never forwarded again.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan models.Event
	pending     []models.Event
	forward     func(models.Event)
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan models.Event),
	}
}

// SetForwarder installs fn to receive every locally published event
func (b *EventBus) SetForwarder(fn func(models.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = fn
}

// Subscribe creates a new event channel. The channel is never closed; call
// Unsubscribe when done.
func (b *EventBus) Subscribe(subID string, bufSize int) <-chan models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.Event, bufSize)
	b.subscribers[subID] = ch

	log.Printf("[EVENT-BUS] Subscribe: sub=%s (total=%d)", subID, len(b.subscribers))
	return ch
}

// Unsubscribe removes a subscription
func (b *EventBus) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[subID]; ok {
		delete(b.subscribers, subID)
		log.Printf("[EVENT-BUS] Unsubscribe: sub=%s (remaining=%d)", subID, len(b.subscribers))
	}
}

// DrainPending returns and clears the events buffered while nobody was subscribed
func (b *EventBus) DrainPending() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.pending
	b.pending = nil
	return events
}

// Publish delivers event locally and forwards it to other instances
func (b *EventBus) Publish(event models.Event) {
	b.PublishLocal(event)

	b.mu.RLock()
	forward := b.forward
	b.mu.RUnlock()
	if forward != nil {
		forward(event)
	}
}

// PublishLocal delivers event to this process's subscribers only. Non-blocking:
// a full subscriber misses the event.
func (b *EventBus) PublishLocal(event models.Event) {
	b.mu.RLock()
	delivered := false
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
			delivered = true
		default:
		}
	}
	b.mu.RUnlock()

	if !delivered && importantEventTypes[event.Type] {
		b.bufferEvent(event)
	}
}

func (b *EventBus) bufferEvent(event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, event)
	if len(b.pending) > maxPendingEvents {
		b.pending = b.pending[len(b.pending)-maxPendingEvents:]
	}
}

// SubscriberCount returns the number of active subscribers
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// PendingCount returns the number of buffered events
func (b *EventBus) PendingCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pending)
}
