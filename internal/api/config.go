// Package api provides the HTTP presentation surface of navpreview: coordinator
// state, photo slots, mode control, the SSE stream that drives browser-hosted
// players, and the endpoints those players report back to.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultPreviewTTL      = 30 * time.Minute
	DefaultProgressRate    = 10.0
	DefaultHeartbeat       = 30 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port

	AllowedOrigins []string // CORS allowed origins

	// Timeouts. There is no write timeout; the SSE stream stays open.
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Limits
	BodyLimit string // Maximum request body size, e.g. "10M"

	PreviewTTL   time.Duration // lifetime of uploaded photo previews
	ProgressRate float64       // loading progress updates per second per SSE client
	Heartbeat    time.Duration // SSE heartbeat interval

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":8080",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       "10M",
		PreviewTTL:      DefaultPreviewTTL,
		ProgressRate:    DefaultProgressRate,
		Heartbeat:       DefaultHeartbeat,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings == nil {
		return cfg
	}

	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if settings.WebServer.PreviewTTL > 0 {
		cfg.PreviewTTL = settings.WebServer.PreviewTTL
	}
	if settings.WebServer.ProgressRate > 0 {
		cfg.ProgressRate = settings.WebServer.ProgressRate
	}
	cfg.Debug = settings.Main.Debug

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.ProgressRate <= 0 {
		return fmt.Errorf("progress rate must be positive")
	}
	if c.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, preview_ttl=%s, debug=%v",
		c.Listen, c.PreviewTTL, c.Debug)
}
