package capture

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/tphakala/navpreview/internal/errors"
)

const sysfsVideo = "/sys/class/video4linux"

// V4L2Device opens local video4linux nodes. The facing mode of a request is
// looked up in a mapping from facing mode to device node.
type V4L2Device struct {
	nodes map[string]string
}

// NewV4L2Device returns a device resolving facing modes through nodes, for
// example {"environment": "/dev/video0"}.
func NewV4L2Device(nodes map[string]string) *V4L2Device {
	return &V4L2Device{nodes: nodes}
}

// Name implements Device.
func (d *V4L2Device) Name() string { return "v4l2" }

// Open implements Device. Holding the node open keeps other processes from
// claiming the camera; Stop closes it.
func (d *V4L2Device) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	node, ok := d.nodes[c.FacingMode]
	if !ok {
		return nil, fmt.Errorf("%w: no node configured for facing mode %q", ErrNoMatchingDevice, c.FacingMode)
	}

	f, err := os.OpenFile(node, os.O_RDWR, 0)
	if err != nil {
		return nil, mapOpenError(node, err)
	}

	return newStream(node, f.Close), nil
}

func mapOpenError(node string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, node, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %s: %w", ErrNoMatchingDevice, node, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %s: %w", ErrCaptureBusy, node, err)
	default:
		return err
	}
}

// DeviceInfo describes a local capture node.
type DeviceInfo struct {
	Node string `json:"node" yaml:"node"`
	Name string `json:"name" yaml:"name"`
}

// Enumerate lists video4linux nodes known to sysfs. It returns an empty list
// on hosts without video4linux.
func Enumerate() ([]DeviceInfo, error) {
	return enumerate(sysfsVideo)
}

func enumerate(root string) ([]DeviceInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	devices := make([]DeviceInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		label, err := os.ReadFile(filepath.Join(root, name, "name"))
		if err != nil {
			label = []byte(name)
		}
		devices = append(devices, DeviceInfo{
			Node: "/dev/" + name,
			Name: strings.TrimSpace(string(label)),
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Node < devices[j].Node })
	return devices, nil
}
