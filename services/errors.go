package services

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned when a seat increment loses the race
// for the last open seat. Callers retry or route to the waitlist.
var ErrCapacityExceeded = errors.New("class capacity exceeded")

// ErrClaimWindowExpired is returned when a waitlisted family tries to
// claim a seat after their window has passed. They must rejoin.
var ErrClaimWindowExpired = errors.New("waitlist claim window has expired")

// ErrUnrecognizedEvent is returned for webhook payloads the reconciler
// does not understand. The caller must not acknowledge the delivery.
var ErrUnrecognizedEvent = errors.New("unrecognized or malformed provider event")

// ValidationError carries a caller-facing message for bad input. No
// state is changed when one is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
