// Package conf provides configuration management for navpreview.
package conf

import "github.com/tphakala/navpreview/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time to ensure it uses
// the current centralized logger (which may be set after package init).
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
