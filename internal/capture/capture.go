// Package capture acquires and releases live camera streams. At most one
// stream is open at a time; the Manager owns it.
package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tphakala/navpreview/internal/errors"
)

// Sentinel errors wrapped by capture failures. Match them with errors.Is.
var (
	ErrPermissionDenied = errors.NewStd("camera permission denied")
	ErrNoMatchingDevice = errors.NewStd("no camera matches the requested constraints")
	ErrStreamReleased   = errors.NewStd("capture stream already released")
	ErrCaptureBusy      = errors.NewStd("capture device is busy")
)

// Constraints describe the requested stream.
type Constraints struct {
	FacingMode string `json:"facingMode,omitempty"` // "environment" or "user"
	Audio      bool   `json:"audio"`
}

// Stream is an open capture stream.
type Stream interface {
	// ID identifies the stream for logs and the browser bridge
	ID() string
	// Device names the device the stream came from
	Device() string
	// Active reports whether the tracks are still running
	Active() bool
	// Stop stops every track. Stopping twice is a no-op.
	Stop() error
}

// Device opens streams.
type Device interface {
	Name() string
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// baseStream implements Stream around a stop function.
type baseStream struct {
	id     string
	device string
	stop   func() error
	once   sync.Once
	active atomic.Bool
	err    error
}

func newStream(device string, stop func() error) *baseStream {
	return newStreamWithID(uuid.NewString(), device, stop)
}

func newStreamWithID(id, device string, stop func() error) *baseStream {
	s := &baseStream{id: id, device: device, stop: stop}
	s.active.Store(true)
	return s
}

func (s *baseStream) ID() string     { return s.id }
func (s *baseStream) Device() string { return s.device }
func (s *baseStream) Active() bool   { return s.active.Load() }

func (s *baseStream) Stop() error {
	s.once.Do(func() {
		s.active.Store(false)
		if s.stop != nil {
			s.err = s.stop()
		}
	})
	return s.err
}
