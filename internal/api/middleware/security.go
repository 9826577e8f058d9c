package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HSTSMaxAge is one year in seconds.
const HSTSMaxAge = 31536000

// apiCSP applies to JSON, SSE and preview responses; none of them load
// subresources or may be framed by other origins.
const apiCSP = "default-src 'none'; img-src 'self'; frame-ancestors 'self'"

// SecurityConfig holds configuration for security middleware.
type SecurityConfig struct {
	// AllowedOrigins may call the API from a browser. The player page is
	// usually served from a different origin than the API.
	AllowedOrigins []string

	HSTSMaxAge            int
	ContentSecurityPolicy string
}

// DefaultSecurityConfig returns the settings used when nothing is configured.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins:        []string{"*"},
		HSTSMaxAge:            HSTSMaxAge,
		ContentSecurityPolicy: apiCSP,
	}
}

// NewCORS allows the player page to post media events and capture results
// and to reconnect the event stream with Last-Event-ID.
func NewCORS(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPut,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			"Last-Event-ID",
		},
		// No cookies or auth; credentials would also rule out the "*" origin
		AllowCredentials: false,
	})
}

// NewSecureHeaders sets the response security headers.
func NewSecureHeaders(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            config.HSTSMaxAge,
		ContentSecurityPolicy: config.ContentSecurityPolicy,
		ReferrerPolicy:        "no-referrer",
	})
}

// NewGzip compresses responses except the event stream, which must reach the
// browser unbuffered.
func NewGzip() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/stream")
		},
	})
}

// NewBodyLimit rejects request bodies larger than limit, e.g. "10M".
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}
