// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Label values for the mode controller.
const (
	// ModeStandard is the to label for transitions into the file-backed mode.
	ModeStandard = "standard"
	// ModeRealtime is the to label for transitions into the camera mode.
	ModeRealtime = "realtime"

	// ResultOK marks a transition whose players all settled.
	ResultOK = "ok"
	// ResultError marks a transition where a standard setup failed.
	ResultError = "error"
	// ResultCameraError marks a realtime transition whose acquisition failed.
	ResultCameraError = "camera-error"
)

// Histogram bucket configuration constants.
// These define the base values and factors for exponential bucket generation.
const (
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001
	// BucketStart100B is the starting bucket for 100 byte histograms (100B to ~100MB range).
	BucketStart100B = 100.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics listener.
const ShutdownTimeout = 5 * time.Second
