// Package observability provides Prometheus metrics functionality for monitoring navpreview.
package observability

import "github.com/tphakala/navpreview/internal/logger"

// log is resolved on use so it picks up the logger installed by the CLI.
func log() logger.Logger {
	return logger.Global().Module("telemetry")
}
