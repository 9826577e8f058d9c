package api

import (
	"crypto/rand"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/logger"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryConflict), errors.IsUnexpectedState(err):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HandleError logs err and writes it as an ErrorResponse. A zero code picks
// the status from the error category.
func (s *Server) HandleError(ctx echo.Context, err error, message string, code int) error {
	if code == 0 {
		code = statusFor(err)
	}
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("API error", fields...)
	} else {
		s.log.Debug("API error", fields...)
	}

	return ctx.JSON(code, resp)
}
