package workflow

import "errors"

var (
	// ErrWorkflowNotFound indicates a registry lookup for an unknown name.
	ErrWorkflowNotFound = errors.New("workflow: not found")

	// ErrTypeMismatch indicates a value of the wrong type crossed an erased step.
	ErrTypeMismatch = errors.New("workflow: type mismatch")
)
