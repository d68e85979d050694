package stepflow

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	// KindCheckpoint marks a deliberate pause raised by a checkpoint step.
	// It is not a failure of the work itself; callers inspect the snapshot
	// and decide how to resume.
	KindCheckpoint ErrorKind = "checkpoint"

	// KindValidation indicates bad input or configuration.
	KindValidation ErrorKind = "validation"

	// KindExecution indicates a failure while running a step.
	KindExecution ErrorKind = "execution"

	// KindJSON indicates a serialization failure.
	KindJSON ErrorKind = "json"

	// KindMessage is a free-form failure. Errors that do not come from this
	// package are reported with this kind as well.
	KindMessage ErrorKind = "message"
)

// Error is the single error type produced by pipelines.
type Error struct {
	Kind ErrorKind
	Msg  string

	// StepName and Snapshot are set for checkpoint errors only.
	StepName string
	Snapshot Value

	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	var s string
	switch e.Kind {
	case KindCheckpoint:
		s = fmt.Sprintf("Checkpoint reached at step '%s'", e.StepName)
	case KindValidation:
		s = "Validation error: " + e.Msg
	case KindExecution:
		s = "Execution error: " + e.Msg
	case KindJSON:
		s = "JSON error: " + e.Msg
	default:
		s = e.Msg
	}
	if e.Cause != nil && e.Kind != KindJSON {
		return fmt.Sprintf("%s: %v", s, e.Cause)
	}
	return s
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewCheckpointError creates a checkpoint error carrying a snapshot of the
// value that reached the checkpoint.
func NewCheckpointError(stepName string, snapshot Value) *Error {
	return &Error{Kind: KindCheckpoint, StepName: stepName, Snapshot: snapshot}
}

// NewValidationError creates a validation error.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// NewExecutionError creates an execution error wrapping cause, which may be nil.
func NewExecutionError(msg string, cause error) *Error {
	return &Error{Kind: KindExecution, Msg: msg, Cause: cause}
}

// NewJSONError creates a serialization error from cause.
func NewJSONError(cause error) *Error {
	msg := "unknown"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindJSON, Msg: msg, Cause: cause}
}

// NewMessageError creates a free-form error.
func NewMessageError(msg string) *Error {
	return &Error{Kind: KindMessage, Msg: msg}
}

// Errorf creates a free-form error with a formatted message.
func Errorf(format string, args ...any) *Error {
	return NewMessageError(fmt.Sprintf(format, args...))
}

// KindOf returns the kind of err. Foreign errors report KindMessage and a nil
// error reports the empty kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindMessage
}

// IsCheckpoint returns true if err is or wraps a checkpoint error.
func IsCheckpoint(err error) bool {
	return isKind(err, KindCheckpoint)
}

// IsValidation returns true if err is or wraps a validation error.
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// IsExecution returns true if err is or wraps an execution error.
func IsExecution(err error) bool {
	return isKind(err, KindExecution)
}

// IsJSON returns true if err is or wraps a serialization error.
func IsJSON(err error) bool {
	return isKind(err, KindJSON)
}

// AsCheckpoint extracts the checkpoint error from err.
func AsCheckpoint(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindCheckpoint {
		return e, true
	}
	return nil, false
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
