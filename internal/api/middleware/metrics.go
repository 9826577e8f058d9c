package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, duration float64, sizeBytes int64)
}

// NewMetrics records request counts and latencies by route pattern, so
// /photos/current and /photos/destination share one series.
func NewMetrics(rec RequestRecorder, skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rec == nil || (skipper != nil && skipper(c)) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			rec.RecordHTTPRequest(c.Request().Method, path, status, time.Since(start).Seconds(), c.Response().Size)
			return err
		}
	}
}
