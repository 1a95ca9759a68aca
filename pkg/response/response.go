package response

import (
	"errors"
	"net/http"

	"orderdesk/internal/apperrors"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success wraps data in a success envelope.
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error wraps a message in an error envelope.
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// StatusFor maps a service error to the HTTP status it should surface as.
// Unrecognized errors are treated as internal.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrAccessDenied):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrFetchTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the error envelope for a service error.
func FromError(err error) (int, Response) {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	return code, Error(code, msg)
}
