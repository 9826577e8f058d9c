// Package events provides an asynchronous event bus that carries the
// coordinator's presentation output (loading state, titles, scroll requests,
// player commands, surfaced errors) to consumers such as the SSE stream.
package events

import (
	"time"
)

// Event is a notification for the presentation layer.
type Event interface {
	// Kind names the event; it is used as the SSE event name
	Kind() string

	// OccurredAt returns when the event was produced
	OccurredAt() time.Time
}

// EventConsumer represents a consumer that processes events
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// Publisher is the producer side of the bus.
type Publisher interface {
	TryPublish(event Event) bool
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
}
