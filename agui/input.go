package agui

import (
	"encoding/json"
	"errors"
)

// RunWorkflowInput represents the AG-UI protocol request for running a workflow.
// Workflows are dispatched by name with a JSON input.
type RunWorkflowInput struct {
	ThreadID       string          `json:"thread_id"`
	RunID          string          `json:"run_id"`
	WorkflowName   string          `json:"workflow_name"`   // Name of workflow to execute
	Input          json.RawMessage `json:"input,omitempty"` // Workflow input
	ForwardedProps any             `json:"forwarded_props,omitempty"`
}

// PreparedWorkflowInput contains validated workflow input ready for execution.
type PreparedWorkflowInput struct {
	ThreadID     string
	RunID        string
	WorkflowName string
	Input        json.RawMessage
}

// ErrNoWorkflowName is returned when the workflow name is empty.
var ErrNoWorkflowName = errors.New("no workflow name provided")

// Prepare validates the workflow input.
// Returns ErrNoWorkflowName if WorkflowName is empty.
func (r *RunWorkflowInput) Prepare() (*PreparedWorkflowInput, error) {
	if r.WorkflowName == "" {
		return nil, ErrNoWorkflowName
	}

	return &PreparedWorkflowInput{
		ThreadID:     r.ThreadID,
		RunID:        r.RunID,
		WorkflowName: r.WorkflowName,
		Input:        r.Input,
	}, nil
}

// DecodeInput decodes the raw input into T.
// Returns the zero value of T if Input is empty.
func DecodeInput[T any](input *PreparedWorkflowInput) (T, error) {
	var result T
	if len(input.Input) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(input.Input, &result); err != nil {
		return result, err
	}
	return result, nil
}

// MustDecodeInput is like DecodeInput but panics on error.
func MustDecodeInput[T any](input *PreparedWorkflowInput) T {
	result, err := DecodeInput[T](input)
	if err != nil {
		panic("agui: failed to decode workflow input: " + err.Error())
	}
	return result
}
