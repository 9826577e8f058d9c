// Package errors - event bus integration
package errors

import (
	"sync/atomic"
)

// EventPublisher is an interface for publishing error events.
// It lets this package push events without importing the events package.
type EventPublisher interface {
	TryPublishError(event *EnhancedError) bool
}

var (
	globalEventPublisher atomic.Pointer[EventPublisher]
	hasActiveReporting   atomic.Bool
)

// SetEventPublisher installs the global event publisher. Passing nil disables publishing.
func SetEventPublisher(publisher EventPublisher) {
	if publisher == nil {
		globalEventPublisher.Store(nil)
		hasActiveReporting.Store(false)
		return
	}
	globalEventPublisher.Store(&publisher)
	hasActiveReporting.Store(true)
}

// publishToEventBus publishes an error to the event bus if available
func publishToEventBus(ee *EnhancedError) {
	publisherPtr := globalEventPublisher.Load()
	if publisherPtr == nil {
		return
	}

	publisher := *publisherPtr
	if publisher == nil {
		return
	}

	if publisher.TryPublishError(ee) {
		ee.MarkReported()
	}
}
