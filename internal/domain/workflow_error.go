package domain

import (
	"fmt"
	"strings"
	"time"
)

// WorkflowError is an execution failure reported by the workflow engine.
// It is data about the engine's run, never a fault of this service.
type WorkflowError struct {
	ID           int64     `json:"id"`
	SessionID    *int64    `json:"session_id"`
	WorkflowName string    `json:"workflow_name"`
	NodeName     *string   `json:"node_name"`
	ErrorMessage string    `json:"error_message"`
	ErrorStack   *string   `json:"error_stack"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the required fields.
func (e *WorkflowError) Validate() error {
	e.WorkflowName = strings.TrimSpace(e.WorkflowName)
	if e.WorkflowName == "" || strings.TrimSpace(e.ErrorMessage) == "" {
		return fmt.Errorf("%w: workflowName and errorMessage are required", ErrValidation)
	}
	return nil
}
