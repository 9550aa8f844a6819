package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrReservationConflict = errors.New("reservation conflict")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrNoSpaceAvailable    = errors.New("no space available")
	ErrNotFound            = errors.New("reservation not found")
)

const (
	msgValidationError   = "Validation error"
	msgReservationFuture = "Reservation time must be in the future"
	msgSameStart         = "You already have a reservation at this exact time for license plate: %s"
	msgOverlap           = "You already have an overlapping reservation in this time range for license plate: %s"
	msgMaxCapacity       = "Parking has reached maximum capacity for this time slot"
	msgNoSpace           = "No parking spaces available for this time slot"
	msgNotFound          = "Reservation not found with ID: "
)

// ReservationError carries a user-facing message on top of one of the sentinel kinds above.
// Fields is set for request validation failures, keyed by JSON field name.
type ReservationError struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *ReservationError) Error() string { return e.Message }

func (e *ReservationError) Unwrap() error { return e.Kind }

func newError(kind error, message string) error {
	return &ReservationError{Kind: kind, Message: message}
}

func newValidationError(fields map[string]string) error {
	return &ReservationError{Kind: ErrInvalidRequest, Message: msgValidationError, Fields: fields}
}
