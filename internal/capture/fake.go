package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// FakeDevice is an in-memory Device for tests and the simulate command.
// Deny makes Open fail; Gate, when set, holds Open until it receives or is
// closed, which lets callers interleave other work with an acquisition.
type FakeDevice struct {
	name string

	mu   sync.Mutex
	deny error
	gate chan struct{}

	opens  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
}

// NewFakeDevice returns a fake device named name.
func NewFakeDevice(name string) *FakeDevice {
	return &FakeDevice{name: name}
}

// Name implements Device.
func (f *FakeDevice) Name() string { return f.name }

// Deny makes subsequent opens fail with err. Pass nil to allow again.
func (f *FakeDevice) Deny(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deny = err
}

// Hold makes subsequent opens block until the returned channel is closed.
func (f *FakeDevice) Hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

// Open implements Device.
func (f *FakeDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	f.mu.Lock()
	gate, deny := f.gate, f.deny
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if deny != nil {
		return nil, deny
	}
	if c.FacingMode != "" && c.FacingMode != "environment" && c.FacingMode != "user" {
		return nil, fmt.Errorf("%w: facing mode %q", ErrNoMatchingDevice, c.FacingMode)
	}

	f.opens.Add(1)
	n := f.active.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return newStream(f.name, func() error {
		f.active.Add(-1)
		return nil
	}), nil
}

// Opens returns how many streams were opened in total.
func (f *FakeDevice) Opens() int { return int(f.opens.Load()) }

// ActiveStreams returns how many opened streams have not been stopped.
func (f *FakeDevice) ActiveStreams() int { return int(f.active.Load()) }

// PeakActiveStreams returns the most streams that were ever open at once.
func (f *FakeDevice) PeakActiveStreams() int { return int(f.peak.Load()) }
