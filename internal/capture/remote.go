package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/events"
)

// Capture request actions sent to the browser.
const (
	ActionAcquire = "acquire"
	ActionRelease = "release"
)

// ErrUnknownRequest is returned by Resolve for a request that is not pending.
var ErrUnknownRequest = errors.NewStd("unknown capture request")

// Result is the browser's answer to a capture request. ErrorName carries the
// DOMException name when the request failed.
type Result struct {
	RequestID string `json:"requestId"`
	OK        bool   `json:"ok"`
	ErrorName string `json:"errorName,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RemoteDevice opens the camera of a connected browser. The request goes out
// as a CaptureRequested event and the browser answers through Resolve.
type RemoteDevice struct {
	pub events.Publisher

	mu      sync.Mutex
	pending map[string]chan Result
}

// NewRemoteDevice returns a device that publishes requests on pub.
func NewRemoteDevice(pub events.Publisher) *RemoteDevice {
	return &RemoteDevice{pub: pub, pending: make(map[string]chan Result)}
}

// Name implements Device.
func (d *RemoteDevice) Name() string { return "remote" }

// Open implements Device.
func (d *RemoteDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	id := uuid.NewString()
	ch := make(chan Result, 1)

	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	if !d.pub.TryPublish(events.CaptureRequested{
		RequestID:  id,
		Action:     ActionAcquire,
		FacingMode: c.FacingMode,
		Audio:      c.Audio,
		At:         time.Now(),
	}) {
		return nil, fmt.Errorf("%w: no presentation client connected", ErrNoMatchingDevice)
	}

	select {
	case r := <-ch:
		if !r.OK {
			return nil, mapBrowserError(r)
		}
		return newStreamWithID(id, d.Name(), func() error {
			d.release(id)
			return nil
		}), nil
	case <-ctx.Done():
		// The browser may still grant the stream; make sure it lets go.
		d.release(id)
		return nil, ctx.Err()
	}
}

func (d *RemoteDevice) release(id string) {
	d.pub.TryPublish(events.CaptureRequested{
		RequestID: id,
		Action:    ActionRelease,
		At:        time.Now(),
	})
}

// Resolve delivers the browser's answer for a pending request.
func (d *RemoteDevice) Resolve(r Result) error {
	d.mu.Lock()
	ch, ok := d.pending[r.RequestID]
	if ok {
		delete(d.pending, r.RequestID)
	}
	d.mu.Unlock()

	if !ok {
		if r.OK {
			// Late grant for an abandoned request
			d.release(r.RequestID)
		}
		return fmt.Errorf("%w: %s", ErrUnknownRequest, r.RequestID)
	}
	ch <- r
	return nil
}

func mapBrowserError(r Result) error {
	msg := r.Message
	if msg == "" {
		msg = r.ErrorName
	}
	switch r.ErrorName {
	case "NotAllowedError", "SecurityError":
		return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	case "OverconstrainedError", "NotFoundError":
		return fmt.Errorf("%w: %s", ErrNoMatchingDevice, msg)
	case "NotReadableError", "AbortError":
		return fmt.Errorf("%w: %s", ErrCaptureBusy, msg)
	default:
		return fmt.Errorf("capture failed: %s", msg)
	}
}
