package events

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
)

// EventBus provides asynchronous event processing with non-blocking guarantees
type EventBus struct {
	eventChan chan Event

	bufferSize int
	workers    int

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	initialized atomic.Bool
	running     atomic.Bool
	mu          sync.Mutex

	consumers []EventConsumer
	dedup     *ErrorDeduplicator

	stats EventBusStats

	logger logger.Logger
}

// Global event bus instance (lazily initialized)
var (
	globalEventBus *EventBus
	globalMutex    sync.Mutex
)

// ErrEventBusDisabled is returned by Initialize when the config disables the bus.
var ErrEventBusDisabled = errors.NewStd("event bus is disabled")

// Config holds event bus configuration
type Config struct {
	BufferSize int
	// Workers > 1 processes events concurrently and gives up delivery order;
	// presentation consumers expect order, so the default is one worker.
	Workers       int
	Enabled       bool
	Deduplication *DeduplicationConfig
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize:    4096,
		Workers:       1,
		Enabled:       true,
		Deduplication: DefaultDeduplicationConfig(),
	}
}

// New creates a stand-alone event bus. Workers start with the first consumer.
func New(config *Config) *EventBus {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.BufferSize < 1 {
		config.BufferSize = DefaultConfig().BufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := logger.Global().Module("events")

	eb := &EventBus{
		eventChan:  make(chan Event, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		ctx:        ctx,
		cancel:     cancel,
		consumers:  make([]EventConsumer, 0),
		dedup:      NewErrorDeduplicator(config.Deduplication, log),
		logger:     log,
	}
	eb.initialized.Store(true)

	return eb
}

// Initialize creates or returns the global event bus instance
func Initialize(config *Config) (*EventBus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalEventBus != nil {
		return globalEventBus, nil
	}

	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, ErrEventBusDisabled
	}

	globalEventBus = New(config)

	globalEventBus.logger.Info("event bus initialized",
		logger.Int("buffer_size", globalEventBus.bufferSize),
		logger.Int("workers", globalEventBus.workers))

	return globalEventBus, nil
}

// GetEventBus returns the global event bus instance
func GetEventBus() *EventBus {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalEventBus
}

// ResetForTesting drops the global instance without shutting it down.
func ResetForTesting() {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalEventBus = nil
}

// RegisterConsumer adds a new event consumer
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)

	eb.logger.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	// Start workers with the first consumer
	if len(eb.consumers) == 1 && !eb.running.Load() && eb.ctx.Err() == nil {
		eb.start()
	}

	return nil
}

// TryPublish attempts to publish an event without blocking.
// Returns true if the event was accepted, false if dropped.
func (eb *EventBus) TryPublish(event Event) bool {
	if eb == nil || !eb.initialized.Load() || !eb.running.Load() {
		return false
	}

	if raised, ok := event.(ErrorRaised); ok && !eb.dedup.ShouldProcess(raised) {
		atomic.AddUint64(&eb.stats.EventsSuppressed, 1)
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		eb.logger.Debug("event dropped due to full buffer", logger.String("kind", event.Kind()))
		return false
	}
}

// TryPublishError converts a built error into an ErrorRaised event.
// It lets the errors package report through the bus.
func (eb *EventBus) TryPublishError(ee *errors.EnhancedError) bool {
	if ee == nil {
		return false
	}
	return eb.TryPublish(ErrorRaised{
		Component: ee.GetComponent(),
		Category:  ee.GetCategory(),
		Message:   ee.GetMessage(),
		Context:   ee.GetContext(),
		At:        ee.GetTimestamp(),
	})
}

// start begins the worker goroutines
func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}

	eb.logger.Debug("starting event bus workers", logger.Int("count", eb.workers))

	for i := range eb.workers {
		eb.wg.Go(func() { eb.worker(i) })
	}
}

// worker processes events from the channel
func (eb *EventBus) worker(id int) {
	log := eb.logger.With(logger.Int("worker_id", id))

	for {
		select {
		case <-eb.ctx.Done():
			return

		case event, ok := <-eb.eventChan:
			if !ok {
				return
			}
			eb.processEvent(event, log)
		}
	}
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event Event, log logger.Logger) {
	eb.mu.Lock()
	consumers := slices.Clone(eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("kind", event.Kind()))
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.Error(err),
					logger.String("kind", event.Kind()))
				return
			}
			atomic.AddUint64(&eb.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown gracefully shuts down the event bus
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil || !eb.initialized.Load() {
		return nil
	}

	eb.running.Store(false)
	eb.cancel()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Debug("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		eb.logger.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}

	return EventBusStats{
		EventsReceived:   atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsSuppressed: atomic.LoadUint64(&eb.stats.EventsSuppressed),
		EventsProcessed:  atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:    atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:   atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
