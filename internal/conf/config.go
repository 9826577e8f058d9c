// config.go: settings struct for navpreview and functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/navpreview/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains application wide settings.
type MainSettings struct {
	Name   string // instance name shown in logs and the UI
	Locale string // display language for titles, en or zh
	Debug  bool   // true to enable debug logging
}

// VideoSettings holds the pre-recorded clip locations.
type VideoSettings struct {
	StandardVisualNav      string // primary player clip in standard mode
	StandardIndoorMap      string // secondary player clip in standard mode
	RealtimeIndoorLocation string // secondary player companion clip in realtime mode
}

// SyncSettings tunes the playback coordinator.
type SyncSettings struct {
	SeekDeadband    float64       // seconds; mirrored seeks closer than this are skipped
	TickInterval    time.Duration // scheduler tick used for deferred work
	SettleTimeout   time.Duration // max wait for a player setup to become ready or fail
	TakeoffDuration time.Duration // length of the loading view exit animation
}

// CameraSettings configures live capture acquisition.
type CameraSettings struct {
	Driver         string            // remote, v4l2 or fake
	FacingMode     string            // requested facing mode, environment or user
	Audio          bool              // request an audio track with the video
	Devices        map[string]string // facing mode to device node, v4l2 only
	AcquireTimeout time.Duration     // max wait for a capture device to open
}

// WebServerSettings configures the HTTP presentation surface.
type WebServerSettings struct {
	Enabled      bool          // true to serve the HTTP API
	Listen       string        // listen address, host:port
	PreviewTTL   time.Duration // how long uploaded photo previews are kept
	ProgressRate float64       // max loading progress updates per second per client
}

// TelemetrySettings configures the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to expose /metrics
	Listen  string // separate listener for metrics, empty serves on the web server
}

// Settings contains all configuration options for navpreview.
type Settings struct {
	Main      MainSettings
	Videos    VideoSettings
	Sync      SyncSettings
	Camera    CameraSettings
	WebServer WebServerSettings
	Telemetry TelemetrySettings
	Logging   logger.LoggingConfig
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	// Invalid environment values are reported but do not prevent startup;
	// ValidateSettings rejects anything that would break the coordinator.
	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil { //nolint:gosec // config is not secret
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config file: %w", err)
	}
	return data, nil
}

// DefaultConfigYAML returns the embedded default configuration.
func DefaultConfigYAML() ([]byte, error) {
	return getDefaultConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				GetLogger().Error("error loading settings", logger.Error(err))
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath as YAML.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write through a temporary file so a crash never leaves a truncated config
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file into place: %w", err)
	}

	return nil
}
