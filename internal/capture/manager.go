package capture

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
)

// Acquisition results reported to the Recorder.
const (
	ResultOK         = "ok"
	ResultDenied     = "denied"
	ResultNoDevice   = "no-device"
	ResultTimeout    = "timeout"
	ResultSuperseded = "superseded"
	ResultError      = "error"
)

// Recorder receives capture metrics.
type Recorder interface {
	RecordAcquisition(result string)
	SetOpenStreams(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordAcquisition(string) {}
func (nopRecorder) SetOpenStreams(int)       {}

// Manager enforces the single-stream policy over a Device.
type Manager struct {
	device  Device
	timeout time.Duration
	metrics Recorder
	log     logger.Logger

	// opening serializes device opens so two streams are never live together
	opening chan struct{}

	mu      sync.Mutex
	current Stream
	epoch   uint64
	open    int
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout bounds each acquisition.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// NewManager creates a manager over device.
func NewManager(device Device, opts ...Option) *Manager {
	m := &Manager{
		device:  device,
		timeout: 20 * time.Second,
		metrics: nopRecorder{},
		log:     logger.Global().Module("capture"),
		opening: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DeviceName returns the name of the underlying device.
func (m *Manager) DeviceName() string {
	return m.device.Name()
}

// Acquire opens a new stream, releasing any existing one first. Failures are
// returned as DeviceError and wrap ErrPermissionDenied or ErrNoMatchingDevice
// when the device reported one of those.
func (m *Manager) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.releaseLocked()
	m.mu.Unlock()

	select {
	case m.opening <- struct{}{}:
	case <-ctx.Done():
		m.metrics.RecordAcquisition(ResultSuperseded)
		return nil, errors.DeviceError(ctx.Err(), m.device.Name())
	}
	defer func() { <-m.opening }()

	openCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	stream, err := m.device.Open(openCtx, c)
	if err != nil {
		result := classify(openCtx, err)
		m.metrics.RecordAcquisition(result)
		m.log.Warn("camera acquisition failed",
			logger.String("device", m.device.Name()),
			logger.String("result", result),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return nil, errors.AcquireError(err, m.device.Name(), time.Since(start))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A Release or newer Acquire happened while the device was opening
	if epoch != m.epoch {
		_ = stream.Stop()
		m.metrics.RecordAcquisition(ResultSuperseded)
		m.log.Debug("discarding superseded camera stream", logger.String("stream", stream.ID()))
		return nil, errors.DeviceError(ErrStreamReleased, m.device.Name())
	}

	m.current = stream
	m.open++
	m.metrics.RecordAcquisition(ResultOK)
	m.metrics.SetOpenStreams(m.open)
	m.log.Info("camera acquired",
		logger.String("device", m.device.Name()),
		logger.String("stream", stream.ID()),
		logger.Duration("elapsed", time.Since(start)))

	return stream, nil
}

func classify(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ResultDenied
	case errors.Is(err, ErrNoMatchingDevice):
		return ResultNoDevice
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ResultTimeout
	case errors.Is(err, context.Canceled):
		return ResultSuperseded
	default:
		return ResultError
	}
}

// Release stops s. Nil and already released streams are accepted. Releasing
// the current stream also cancels any acquisition in flight.
func (m *Manager) Release(s Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s == nil || (m.current != nil && s.ID() == m.current.ID()) {
		m.epoch++
		return m.releaseLocked()
	}
	// Not ours, or already replaced
	return s.Stop()
}

func (m *Manager) releaseLocked() error {
	if m.current == nil {
		return nil
	}
	stream := m.current
	m.current = nil
	m.open--
	m.metrics.SetOpenStreams(m.open)

	err := stream.Stop()
	m.log.Info("camera released", logger.String("stream", stream.ID()))
	return err
}

// Reattach hands the current stream to a different consumer without going
// back to the device. It fails with ErrStreamReleased if s is no longer the
// live stream.
func (m *Manager) Reattach(s Stream) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s == nil || m.current == nil || s.ID() != m.current.ID() || !m.current.Active() {
		return nil, errors.DeviceError(ErrStreamReleased, m.device.Name())
	}
	return m.current, nil
}

// Current returns the open stream, if any.
func (m *Manager) Current() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OpenStreams returns how many streams the manager holds open (0 or 1).
func (m *Manager) OpenStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}
