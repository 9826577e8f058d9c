// Package runloop provides the single-threaded cooperative scheduler the
// playback coordinator runs on. Every callback posted to a Scheduler runs on
// one goroutine, one at a time, in posting order.
package runloop

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/navpreview/internal/logger"
)

// Scheduler runs callbacks one at a time on a single logical thread.
// All methods are safe to call from any goroutine.
type Scheduler interface {
	// Post queues fn to run after the callbacks already queued.
	Post(fn func())
	// PostNextTick queues fn to run at the next tick boundary, after
	// everything currently queued has drained.
	PostNextTick(fn func())
	// After queues fn once d has elapsed. The returned func cancels it;
	// cancelling after fn has run is a no-op.
	After(d time.Duration, fn func()) (cancel func())
	// Go runs blocking work off the loop. Results must be handed back with Post.
	Go(fn func())
}

// DefaultTickInterval approximates one display frame.
const DefaultTickInterval = 16 * time.Millisecond

// Loop is the production Scheduler backed by a goroutine and a ticker.
type Loop struct {
	interval time.Duration
	log      logger.Logger

	mu       sync.Mutex
	queue    []func()
	nextTick []func()
	wake     chan struct{}
	stopped  bool

	workers sync.WaitGroup
}

// NewLoop creates a loop that ticks every interval. Call Run to start it.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{
		interval: interval,
		log:      logger.Global().Module("runloop"),
		wake:     make(chan struct{}, 1),
	}
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PostNextTick implements Scheduler.
func (l *Loop) PostNextTick(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.nextTick = append(l.nextTick, fn)
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) func() {
	var (
		mu        sync.Mutex
		cancelled bool
	)
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			mu.Lock()
			skip := cancelled
			mu.Unlock()
			if !skip {
				fn()
			}
		})
	})
	return func() {
		mu.Lock()
		cancelled = true
		mu.Unlock()
		timer.Stop()
	}
}

// Go implements Scheduler. Run waits for outstanding work before returning.
func (l *Loop) Go(fn func()) {
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		fn()
	}()
}

// Run executes callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Debug("run loop started", logger.Duration("tick", l.interval))

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.queue = nil
			l.nextTick = nil
			l.mu.Unlock()
			l.workers.Wait()
			return ctx.Err()
		case <-l.wake:
			l.drain()
		case <-ticker.C:
			l.mu.Lock()
			tick := l.nextTick
			l.nextTick = nil
			l.queue = append(l.queue, tick...)
			l.mu.Unlock()
			l.drain()
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(fn)
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("run loop callback panicked", logger.Any("panic", r))
		}
	}()
	fn()
}
