package dialog

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFlow is returned for a callback route with no flow table
	ErrUnknownFlow = errors.New("unknown flow")

	// ErrMissingCaller is returned when a callback lacks the phone or call id
	ErrMissingCaller = errors.New("callback missing phone or call id")
)

// ValidationError is malformed step input. The caller is asked again.
type ValidationError struct {
	Step    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Step, e.Message)
}

func invalid(step, message string) *ValidationError {
	return &ValidationError{Step: step, Message: message}
}

// NotFoundError means the phone has no customer. The call is routed to registration.
type NotFoundError struct {
	Phone string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no customer for phone %s", e.Phone)
}

// DuplicateError means the phone is already registered. The caller only hears
// a generic failure.
type DuplicateError struct {
	Phone string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("phone %s already registered", e.Phone)
}

// AttemptsExceededError locks the step for the rest of the session.
type AttemptsExceededError struct {
	Step     string
	Attempts int
}

func (e *AttemptsExceededError) Error() string {
	return fmt.Sprintf("step %s locked after %d failed attempts", e.Step, e.Attempts)
}

// PersistenceError wraps a repository failure. The cause is logged, never played.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
