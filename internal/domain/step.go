package domain

import (
	"fmt"
	"strings"
	"time"
)

// StepStatus enumerates the states of one pipeline step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Valid reports whether s is a known step status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal reports whether the step has finished.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// Step is one named stage of a session's pipeline, keyed by (SessionID, StepName).
type Step struct {
	ID          int64      `json:"id"`
	SessionID   int64      `json:"session_id"`
	StepName    string     `json:"step_name"`
	StepOrder   int        `json:"step_order"`
	Status      StepStatus `json:"status"`
	InputData   Document   `json:"input_data"`
	OutputData  Document   `json:"output_data"`
	AIModel     *string    `json:"ai_model"`
	TokensUsed  int        `json:"tokens_used"`
	DurationMs  int        `json:"duration_ms"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// StepUpdate is a progress report for one step. Nil fields were not reported.
type StepUpdate struct {
	SessionID  int64
	StepName   string
	StepOrder  *int
	Status     *StepStatus
	InputData  Document
	OutputData Document
	AIModel    *string
	TokensUsed *int
	DurationMs *int
}

// Validate checks the natural key and the reported status.
func (u *StepUpdate) Validate() error {
	u.StepName = strings.TrimSpace(u.StepName)
	if u.SessionID <= 0 || u.StepName == "" {
		return fmt.Errorf("%w: sessionId and stepName are required", ErrValidation)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unknown step status %q", ErrValidation, *u.Status)
	}
	return nil
}

// StepEffects is what a step report implies beyond its own fields.
type StepEffects struct {
	// Status is the reported status, empty when none was reported.
	Status StepStatus
	// MirrorCurrentStep is set when the session's current_step must follow this step.
	MirrorCurrentStep bool
}

// EvaluateStepUpdate is the single place that decides the implicit effects
// of a step report. Only running and pending reports move current_step.
func EvaluateStepUpdate(u StepUpdate) StepEffects {
	var effects StepEffects
	if u.Status == nil {
		return effects
	}
	effects.Status = *u.Status
	effects.MirrorCurrentStep = *u.Status == StepStatusRunning || *u.Status == StepStatusPending
	return effects
}

// ApplyStepUpdate overwrites the reported fields onto existing (nil for a new
// step). A new step without a reported status starts as running. started_at
// is stamped on the transition into running, completed_at on the transition
// into a terminal status; replays of the same status leave both untouched.
func ApplyStepUpdate(existing *Step, u StepUpdate, now time.Time) Step {
	var out Step
	var prev StepStatus
	if existing != nil {
		out = *existing
		prev = existing.Status
	} else {
		out = Step{
			SessionID:  u.SessionID,
			StepName:   u.StepName,
			Status:     StepStatusRunning,
			InputData:  EmptyObject,
			OutputData: EmptyObject,
			CreatedAt:  now,
		}
	}
	if u.StepOrder != nil {
		out.StepOrder = *u.StepOrder
	}
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.InputData.Present() {
		out.InputData = u.InputData
	}
	if u.OutputData.Present() {
		out.OutputData = u.OutputData
	}
	if u.AIModel != nil {
		out.AIModel = u.AIModel
	}
	if u.TokensUsed != nil {
		out.TokensUsed = *u.TokensUsed
	}
	if u.DurationMs != nil {
		out.DurationMs = *u.DurationMs
	}
	if out.Status == StepStatusRunning && prev != StepStatusRunning {
		started := now
		out.StartedAt = &started
	}
	if out.Status.Terminal() && !prev.Terminal() {
		completed := now
		out.CompletedAt = &completed
	}
	return out
}
