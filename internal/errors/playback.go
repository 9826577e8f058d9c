package errors

import "time"

// Constructors for the three failure kinds of the playback coordinator. All of
// them are handled where they occur; none is meant to abort the process.

// DeviceError creates a capture device error: permission denied or no device
// matching the requested constraints.
func DeviceError(err error, device string) *EnhancedError {
	return deviceError(err, device).Build()
}

// AcquireError is a DeviceError for a failed open that ran for elapsed.
func AcquireError(err error, device string, elapsed time.Duration) *EnhancedError {
	return deviceError(err, device).Timing("camera-acquire", elapsed).Build()
}

func deviceError(err error, device string) *ErrorBuilder {
	return New(err).
		Component("capture").
		Category(CategoryDevice).
		Context("device", device)
}

// SourceLoadError creates an error for a clip that failed to buffer or decode.
func SourceLoadError(err error, player, source string) *EnhancedError {
	return sourceLoadError(err, player, source).Build()
}

// SettleTimeoutError is a SourceLoadError for a player that was still not
// ready after waited.
func SettleTimeoutError(err error, player, source string, waited time.Duration) *EnhancedError {
	return sourceLoadError(err, player, source).Timing("settle", waited).Build()
}

func sourceLoadError(err error, player, source string) *ErrorBuilder {
	return New(err).
		Component("player").
		Category(CategorySourceLoad).
		Context("player", player).
		Context("source", source)
}

// UnexpectedStateError creates an error for a player found in a state the
// transition logic did not anticipate.
func UnexpectedStateError(player, detail string) *EnhancedError {
	return Newf("%s in unexpected state: %s", player, detail).
		Component("controller").
		Category(CategoryState).
		Context("player", player).
		Build()
}

// IsDeviceError reports whether err is a capture device error.
func IsDeviceError(err error) bool {
	return IsCategory(err, CategoryDevice)
}

// IsSourceLoadError reports whether err is a source load error.
func IsSourceLoadError(err error) bool {
	return IsCategory(err, CategorySourceLoad)
}

// IsUnexpectedState reports whether err is an unexpected state error.
func IsUnexpectedState(err error) bool {
	return IsCategory(err, CategoryState)
}
