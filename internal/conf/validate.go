// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"
)

// Accepted enumerated values.
var (
	CameraDrivers = []string{"remote", "v4l2", "fake"}
	FacingModes   = []string{"environment", "user"}
	LogLevels     = []string{"trace", "debug", "info", "warn", "error"}
)

// maxSeekDeadband bounds the mirrored-seek deadband; anything larger makes
// paired clips visibly drift apart.
const maxSeekDeadband = 5.0

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateMainSettings(&settings.Main); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateVideoSettings(&settings.Videos); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSyncSettings(&settings.Sync); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCameraSettings(&settings.Camera); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateTelemetrySettings(&settings.Telemetry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Logging.DefaultLevel != "" && !slices.Contains(LogLevels, settings.Logging.DefaultLevel) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("logging default level must be one of %s, got %q",
			strings.Join(LogLevels, ", "), settings.Logging.DefaultLevel))
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(settings *MainSettings) error {
	if !localePattern.MatchString(settings.Locale) {
		return fmt.Errorf("main.locale must look like 'en' or 'zh-cn', got %q", settings.Locale)
	}
	return nil
}

func validateVideoSettings(settings *VideoSettings) error {
	var errs []string

	if settings.StandardVisualNav == "" {
		errs = append(errs, "videos.standardvisualnav must be set")
	}
	if settings.StandardIndoorMap == "" {
		errs = append(errs, "videos.standardindoormap must be set")
	}
	if settings.RealtimeIndoorLocation == "" {
		errs = append(errs, "videos.realtimeindoorlocation must be set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("video settings errors: %v", errs)
	}
	return nil
}

func validateSyncSettings(settings *SyncSettings) error {
	var errs []string

	if err := checkSeekDeadband(settings.SeekDeadband); err != nil {
		errs = append(errs, err.Error())
	}

	if settings.TickInterval < time.Millisecond || settings.TickInterval > time.Second {
		errs = append(errs, fmt.Sprintf("sync.tickinterval must be between 1ms and 1s, got %s", settings.TickInterval))
	}

	if settings.SettleTimeout <= 0 {
		errs = append(errs, "sync.settletimeout must be positive")
	}

	if settings.TakeoffDuration < 0 {
		errs = append(errs, "sync.takeoffduration must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("sync settings errors: %v", errs)
	}
	return nil
}

func checkSeekDeadband(deadband float64) error {
	if deadband <= 0 || deadband > maxSeekDeadband {
		return fmt.Errorf("seek deadband must be in (0, %g] seconds, got %g", maxSeekDeadband, deadband)
	}
	return nil
}

func validateCameraSettings(settings *CameraSettings) error {
	var errs []string

	if !slices.Contains(CameraDrivers, settings.Driver) {
		errs = append(errs, fmt.Sprintf("camera.driver must be one of %s, got %q", strings.Join(CameraDrivers, ", "), settings.Driver))
	}

	if settings.FacingMode != "" && !slices.Contains(FacingModes, settings.FacingMode) {
		errs = append(errs, fmt.Sprintf("camera.facingmode must be one of %s, got %q", strings.Join(FacingModes, ", "), settings.FacingMode))
	}

	if settings.AcquireTimeout <= 0 {
		errs = append(errs, "camera.acquiretimeout must be positive")
	}

	for facing, node := range settings.Devices {
		if !slices.Contains(FacingModes, facing) {
			errs = append(errs, fmt.Sprintf("camera.devices key %q is not a facing mode", facing))
		}
		if !strings.HasPrefix(node, "/dev/") {
			errs = append(errs, fmt.Sprintf("camera.devices[%s] must be a /dev path, got %q", facing, node))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("camera settings errors: %v", errs)
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("webserver.listen %q is not host:port", settings.Listen))
	}

	if settings.PreviewTTL <= 0 {
		errs = append(errs, "webserver.previewttl must be positive")
	}

	if settings.ProgressRate <= 0 {
		errs = append(errs, "webserver.progressrate must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %v", errs)
	}
	return nil
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if !settings.Enabled || settings.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("telemetry.listen %q is not host:port", settings.Listen)
	}
	return nil
}
