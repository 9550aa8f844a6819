package errors

import (
	stderrors "errors"
	"net/http"

	"parkingreserve/internal/service"
)

const MsgUnexpected = "An unexpected error occurred"

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Code    int
	Message string
	Fields  map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

var (
	ErrUnauthorized = func(msg string) *HTTPError { return NewHTTPError(http.StatusUnauthorized, msg) }
	ErrBadRequest   = func(msg string) *HTTPError { return NewHTTPError(http.StatusBadRequest, msg) }
	ErrRateLimited  = func() *HTTPError { return NewHTTPError(http.StatusTooManyRequests, "Too many requests") }
)

// FromError maps a service error onto its HTTP status. Anything unrecognized becomes a 500 with a
// generic message; the caller is expected to log the original error.
func FromError(err error) *HTTPError {
	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr
	}

	var resErr *service.ReservationError
	message := MsgUnexpected
	var fields map[string]string
	if stderrors.As(err, &resErr) {
		message = resErr.Message
		fields = resErr.Fields
	}

	switch {
	case stderrors.Is(err, service.ErrInvalidRequest):
		return &HTTPError{Code: http.StatusBadRequest, Message: message, Fields: fields}
	case stderrors.Is(err, service.ErrReservationConflict),
		stderrors.Is(err, service.ErrCapacityExceeded),
		stderrors.Is(err, service.ErrNoSpaceAvailable):
		return NewHTTPError(http.StatusConflict, message)
	case stderrors.Is(err, service.ErrNotFound):
		return NewHTTPError(http.StatusNotFound, message)
	case stderrors.Is(err, service.ErrInvalidCredentials):
		return ErrUnauthorized("Invalid credentials")
	default:
		return NewHTTPError(http.StatusInternalServerError, MsgUnexpected)
	}
}
