// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by navpreview.
const EnvPrefix = "NAVPREVIEW"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"main.name", "NAVPREVIEW_MAIN_NAME", nil},
		{"main.locale", "NAVPREVIEW_MAIN_LOCALE", validateEnvLocale},
		{"main.debug", "NAVPREVIEW_MAIN_DEBUG", validateEnvBool},

		// Clip locations
		{"videos.standardvisualnav", "NAVPREVIEW_VIDEOS_STANDARDVISUALNAV", nil},
		{"videos.standardindoormap", "NAVPREVIEW_VIDEOS_STANDARDINDOORMAP", nil},
		{"videos.realtimeindoorlocation", "NAVPREVIEW_VIDEOS_REALTIMEINDOORLOCATION", nil},

		// Coordinator tuning
		{"sync.seekdeadband", "NAVPREVIEW_SYNC_SEEKDEADBAND", validateEnvSeekDeadband},
		{"sync.tickinterval", "NAVPREVIEW_SYNC_TICKINTERVAL", validateEnvDuration},
		{"sync.settletimeout", "NAVPREVIEW_SYNC_SETTLETIMEOUT", validateEnvDuration},
		{"sync.takeoffduration", "NAVPREVIEW_SYNC_TAKEOFFDURATION", validateEnvDuration},

		// Capture
		{"camera.driver", "NAVPREVIEW_CAMERA_DRIVER", validateEnvCameraDriver},
		{"camera.facingmode", "NAVPREVIEW_CAMERA_FACINGMODE", validateEnvFacingMode},
		{"camera.audio", "NAVPREVIEW_CAMERA_AUDIO", validateEnvBool},
		{"camera.acquiretimeout", "NAVPREVIEW_CAMERA_ACQUIRETIMEOUT", validateEnvDuration},

		// Web server and telemetry
		{"webserver.enabled", "NAVPREVIEW_WEBSERVER_ENABLED", validateEnvBool},
		{"webserver.listen", "NAVPREVIEW_WEBSERVER_LISTEN", validateEnvListen},
		{"webserver.previewttl", "NAVPREVIEW_WEBSERVER_PREVIEWTTL", validateEnvDuration},
		{"telemetry.enabled", "NAVPREVIEW_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", "NAVPREVIEW_TELEMETRY_LISTEN", validateEnvListen},

		{"logging.default_level", "NAVPREVIEW_LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

// localePattern matches locale patterns like "en" or "zh-cn"
var localePattern = regexp.MustCompile(`(?i)^[a-z]{2}(-[a-z]{2,4})?$`)

func validateEnvLocale(value string) error {
	if !localePattern.MatchString(value) {
		return fmt.Errorf("locale must match pattern 'xx' or 'xx-xx' (e.g., 'en' or 'zh-cn'), got: '%s'", value)
	}
	return nil
}

func validateEnvSeekDeadband(value string) error {
	deadband, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid seek deadband: %w", err)
	}
	return checkSeekDeadband(deadband)
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvCameraDriver(value string) error {
	if !slices.Contains(CameraDrivers, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(CameraDrivers, ", "))
	}
	return nil
}

func validateEnvFacingMode(value string) error {
	if !slices.Contains(FacingModes, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(FacingModes, ", "))
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !slices.Contains(LogLevels, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(LogLevels, ", "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return bindEnvVars()
}
