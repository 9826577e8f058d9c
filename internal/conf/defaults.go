// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/navpreview/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("main.name", "navpreview")
	viper.SetDefault("main.locale", "en")
	viper.SetDefault("main.debug", false)

	viper.SetDefault("videos.standardvisualnav", "videos/visual_navigation_demo.mp4")
	viper.SetDefault("videos.standardindoormap", "videos/indoor_map_demo.mp4")
	viper.SetDefault("videos.realtimeindoorlocation", "videos/realtime_indoor_location_demo.mp4")

	viper.SetDefault("sync.seekdeadband", 0.2)
	viper.SetDefault("sync.tickinterval", 16*time.Millisecond)
	viper.SetDefault("sync.settletimeout", 30*time.Second)
	viper.SetDefault("sync.takeoffduration", 1400*time.Millisecond)

	viper.SetDefault("camera.driver", "remote")
	viper.SetDefault("camera.facingmode", "environment")
	viper.SetDefault("camera.audio", false)
	viper.SetDefault("camera.devices", map[string]string{})
	viper.SetDefault("camera.acquiretimeout", 20*time.Second)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.previewttl", 30*time.Minute)
	viper.SetDefault("webserver.progressrate", 10.0)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.listen", "")

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	viper.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	viper.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	viper.SetDefault("logging.file_output.compress", false)
}
