package capture

import (
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/events"
)

// Camera driver names accepted in camera.driver.
const (
	DriverRemote = "remote"
	DriverV4L2   = "v4l2"
	DriverFake   = "fake"
)

// NewDevice returns the device selected by settings.Driver. The remote
// driver publishes its requests on pub.
func NewDevice(settings conf.CameraSettings, pub events.Publisher) (Device, error) {
	switch settings.Driver {
	case DriverRemote, "":
		if pub == nil {
			return nil, configError("remote driver needs an event publisher", settings.Driver)
		}
		return NewRemoteDevice(pub), nil
	case DriverV4L2:
		if len(settings.Devices) == 0 {
			return nil, configError("v4l2 driver needs camera.devices", settings.Driver)
		}
		return NewV4L2Device(settings.Devices), nil
	case DriverFake:
		return NewFakeDevice("fake"), nil
	default:
		return nil, configError("unknown camera driver "+settings.Driver, settings.Driver)
	}
}

func configError(msg, driver string) error {
	return errors.Newf("capture: %s", msg).
		Component("capture").
		Category(errors.CategoryConfiguration).
		Context("driver", driver).
		Build()
}

// NewManagerFromSettings creates a Manager over the configured device.
func NewManagerFromSettings(settings conf.CameraSettings, pub events.Publisher, opts ...Option) (*Manager, Device, error) {
	device, err := NewDevice(settings, pub)
	if err != nil {
		return nil, nil, err
	}
	if settings.AcquireTimeout > 0 {
		opts = append([]Option{WithTimeout(settings.AcquireTimeout)}, opts...)
	}
	return NewManager(device, opts...), device, nil
}
