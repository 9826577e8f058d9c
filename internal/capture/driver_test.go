package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/events"
)

type discardPublisher struct{}

func (discardPublisher) TryPublish(events.Event) bool { return true }

func TestNewDeviceSelectsDriver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings conf.CameraSettings
		pub      events.Publisher
		want     string
		wantErr  bool
	}{
		{"remote", conf.CameraSettings{Driver: DriverRemote}, discardPublisher{}, "remote", false},
		{"empty driver is remote", conf.CameraSettings{}, discardPublisher{}, "remote", false},
		{"remote without publisher", conf.CameraSettings{Driver: DriverRemote}, nil, "", true},
		{"v4l2", conf.CameraSettings{Driver: DriverV4L2, Devices: map[string]string{"environment": "/dev/video0"}}, nil, "v4l2", false},
		{"v4l2 without devices", conf.CameraSettings{Driver: DriverV4L2}, nil, "", true},
		{"fake", conf.CameraSettings{Driver: DriverFake}, nil, "fake", false},
		{"unknown", conf.CameraSettings{Driver: "firewire"}, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dev, err := NewDevice(tt.settings, tt.pub)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dev.Name())
		})
	}
}

func TestNewManagerFromSettingsAppliesTimeout(t *testing.T) {
	t.Parallel()

	m, dev, err := NewManagerFromSettings(conf.CameraSettings{
		Driver:         DriverFake,
		AcquireTimeout: 3 * time.Second,
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FakeDevice{}, dev)
	assert.Equal(t, 3*time.Second, m.timeout)
	assert.Equal(t, "fake", m.DeviceName())

	// Options passed by the caller win over the settings
	m, _, err = NewManagerFromSettings(conf.CameraSettings{
		Driver:         DriverFake,
		AcquireTimeout: 3 * time.Second,
	}, nil, WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, m.timeout)
}
