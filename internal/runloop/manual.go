package runloop

import (
	"slices"
	"sync"
	"time"
)

// maxSettleRounds bounds Settle so a callback that re-posts itself on every
// tick cannot hang a test.
const maxSettleRounds = 1000

// Manual is a deterministic Scheduler for tests and headless simulation.
// Nothing runs until the owner calls Flush, Tick, Advance, Settle or Drain.
// Time is virtual and only moves with Advance.
type Manual struct {
	mu       sync.Mutex
	queue    []func()
	nextTick []func()
	timers   []*manualTimer
	now      time.Duration
	seq      uint64
	ticks    int

	workers sync.WaitGroup
}

type manualTimer struct {
	due       time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

// NewManual creates a manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// PostNextTick implements Scheduler.
func (m *Manual) PostNextTick(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTick = append(m.nextTick, fn)
}

// After implements Scheduler on the virtual clock.
func (m *Manual) After(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{due: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.cancelled = true
	}
}

// Go implements Scheduler. The work runs on its own goroutine; Drain waits for it.
func (m *Manual) Go(fn func()) {
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		fn()
	}()
}

// Flush runs queued callbacks, including ones they post, until the queue is empty.
// Next-tick callbacks stay pending.
func (m *Manual) Flush() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
	}
}

// Tick flushes, promotes the next-tick callbacks, and flushes again.
func (m *Manual) Tick() {
	m.Flush()
	m.mu.Lock()
	tick := m.nextTick
	m.nextTick = nil
	m.queue = append(m.queue, tick...)
	m.ticks++
	m.mu.Unlock()
	m.Flush()
}

// Advance moves virtual time forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	m.Flush()

	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var due *manualTimer
		for _, t := range m.timers {
			if t.cancelled || t.due > target {
				continue
			}
			if due == nil || t.due < due.due || (t.due == due.due && t.seq < due.seq) {
				due = t
			}
		}
		if due == nil {
			m.now = target
			m.timers = slices.DeleteFunc(m.timers, func(t *manualTimer) bool { return t.cancelled })
			m.mu.Unlock()
			return
		}
		m.now = due.due
		due.cancelled = true
		m.mu.Unlock()

		due.fn()
		m.Flush()
	}
}

// Settle ticks until nothing is queued for the current or next tick.
// Timers are not fired.
func (m *Manual) Settle() {
	for range maxSettleRounds {
		m.Tick()
		if !m.pending() {
			return
		}
	}
}

// Drain waits for work started with Go, then settles, repeating until quiet.
func (m *Manual) Drain() {
	for range maxSettleRounds {
		m.workers.Wait()
		m.Settle()
		m.mu.Lock()
		quiet := len(m.queue) == 0 && len(m.nextTick) == 0
		m.mu.Unlock()
		if quiet {
			// Work started during Settle may still be running
			m.workers.Wait()
			if !m.pending() {
				return
			}
		}
	}
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Ticks returns how many tick boundaries have passed.
func (m *Manual) Ticks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// PendingTimers returns the number of live timers.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (m *Manual) pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) > 0 || len(m.nextTick) > 0
}
