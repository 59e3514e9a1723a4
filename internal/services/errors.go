package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned to a handler either is, or wraps, one of
// these; anything else is treated as an internal failure.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrDependency = errors.New("dependency failure")
)

// ActionError carries a user-facing message and unwraps to its kind.
type ActionError struct {
	Kind    error
	Message string
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() error { return e.Kind }

func newActionError(kind error, format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return newActionError(ErrValidation, format, args...)
}

func conflictError(format string, args ...interface{}) error {
	return newActionError(ErrConflict, format, args...)
}

func permissionError(format string, args ...interface{}) error {
	return newActionError(ErrPermission, format, args...)
}

func notFoundError(format string, args ...interface{}) error {
	return newActionError(ErrNotFound, format, args...)
}

func dependencyError(format string, args ...interface{}) error {
	return newActionError(ErrDependency, format, args...)
}

var (
	ErrStateConflict  = &ActionError{Kind: ErrConflict, Message: "reservation was modified concurrently, please retry"}
	ErrOptimisticLock = &ActionError{Kind: ErrConflict, Message: "data has been modified by another user, please refresh and try again"}
	ErrSlotTaken      = &ActionError{Kind: ErrConflict, Message: "already booked by another user"}

	ErrUserNotFound        = &ActionError{Kind: ErrNotFound, Message: "user not found"}
	ErrFacilityNotFound    = &ActionError{Kind: ErrNotFound, Message: "facility not found"}
	ErrReservationNotFound = &ActionError{Kind: ErrNotFound, Message: "reservation not found"}
)

// Message returns the user-facing text of err, or "" when err carries none.
func Message(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return ""
}
