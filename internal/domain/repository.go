package domain

import "context"

// SessionRepository is the session half of the ledger. Every mutation is a
// single statement that returns the post-mutation row.
type SessionRepository interface {
	Create(ctx context.Context, attrs NewSession) (*Session, error)
	Get(ctx context.Context, id int64) (*Session, error)
	List(ctx context.Context, filter SessionFilter) ([]Session, int, error)
	// Transition moves the session to status when its current status is one
	// of TransitionSources(status). It returns ErrConflict when the session
	// exists in another status.
	Transition(ctx context.Context, id int64, status SessionStatus, extra TransitionExtra) (*Session, error)
	// ApplyUpdate applies a workflow status report. applied is false when the
	// session is terminal and was left untouched.
	ApplyUpdate(ctx context.Context, update SessionUpdate) (session *Session, applied bool, err error)
}

// StepRepository persists steps keyed by (session_id, step_name).
type StepRepository interface {
	// Upsert applies a step report and, when effects ask for it, mirrors the
	// step name into the session's current_step in the same statement.
	Upsert(ctx context.Context, update StepUpdate, effects StepEffects) (*Step, error)
	ListBySession(ctx context.Context, sessionID int64) ([]Step, error)
}

// CostRepository appends immutable cost entries.
type CostRepository interface {
	Append(ctx context.Context, entry CostEntry) (*CostEntry, error)
	ListBySession(ctx context.Context, sessionID int64) ([]CostEntry, error)
}

// MediaRepository registers pointers to stored objects.
type MediaRepository interface {
	Register(ctx context.Context, file MediaFile) (*MediaFile, error)
}

// WorkflowErrorRepository appends and lists engine-reported errors.
type WorkflowErrorRepository interface {
	Append(ctx context.Context, record WorkflowError) (*WorkflowError, error)
	List(ctx context.Context, filter ErrorFilter) ([]WorkflowError, int, error)
}

// Ledger groups the repositories that make up the session ledger.
type Ledger struct {
	Sessions SessionRepository
	Steps    StepRepository
	Costs    CostRepository
	Media    MediaRepository
	Errors   WorkflowErrorRepository
}
