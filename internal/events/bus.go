// Package events carries lifecycle events from the trading engine to
// observers (notification manager, status API) without coupling them.
package events

import (
	"sync"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	TypeSignalDetected Type = "SIGNAL_DETECTED"
	TypeSignalRejected Type = "SIGNAL_REJECTED" // failed validation
	TypePositionOpened Type = "POSITION_OPENED"
	TypePositionClosed Type = "POSITION_CLOSED"
	TypeCloseRetry     Type = "CLOSE_RETRY"
	TypeReconciled     Type = "RECONCILED"
	TypeEngineError    Type = "ENGINE_ERROR"
	TypeSessionSummary Type = "SESSION_SUMMARY"
)

// Event is one published occurrence. Data carries the event-specific
// payload (an OpenReport, a ClosedTrade, a Summary...).
type Event struct {
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Subscriber handles events. Subscribers run synchronously on the
// publisher's goroutine and must not block.
type Subscriber func(Event)

// Bus is a minimal in-process publish/subscribe hub.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]Subscriber)}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(t Type, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], s)
}

// SubscribeAll registers a subscriber for every event type.
func (b *Bus) SubscribeAll(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, s)
}

// Publish delivers the event to all matching subscribers.
func (b *Bus) Publish(t Type, data interface{}) {
	ev := Event{Type: t, Timestamp: time.Now(), Data: data}

	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[t]...)
	subs = append(subs, b.allSubs...)
	b.mu.RUnlock()

	for _, s := range subs {
		s(ev)
	}
}
