package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"contentfactory/internal/domain"
	"contentfactory/internal/realtime"
	"contentfactory/internal/workflow"
)

// Decision actions accepted by the resume gate.
const (
	ActionApprove    = "approve"
	ActionReject     = "reject"
	ActionSelectIdea = "select_idea"
)

// ResumeGate relays a human decision to the run paused on a session. It
// never writes the ledger: the engine reports the resulting status and
// clears the wait point through session-update.
type ResumeGate struct {
	sessions domain.SessionRepository
	engine   Engine
	events   realtime.Publisher
	log      zerolog.Logger
}

// NewResumeGate wires the gate.
func NewResumeGate(sessions domain.SessionRepository, engine Engine, events realtime.Publisher, log zerolog.Logger) *ResumeGate {
	return &ResumeGate{
		sessions: sessions,
		engine:   engine,
		events:   publisherOrNop(events),
		log:      log.With().Str("component", "resume_gate").Logger(),
	}
}

// Submit validates the decision, checks the session is awaiting one and
// makes a single outbound call. On failure the session stays awaiting and
// the same decision may be retried.
func (g *ResumeGate) Submit(ctx context.Context, sessionID int64, decision workflow.Decision) (workflow.Result, error) {
	switch decision.Action {
	case ActionApprove, ActionReject, ActionSelectIdea:
	default:
		return workflow.Result{}, fmt.Errorf("%w: unknown action %q (allowed: approve, reject, select_idea)", domain.ErrValidation, decision.Action)
	}
	if decision.IdeaIndex != nil && *decision.IdeaIndex < 0 {
		return workflow.Result{}, fmt.Errorf("%w: ideaIndex must not be negative", domain.ErrValidation)
	}

	session, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return workflow.Result{}, err
	}
	if !session.AwaitingDecision() {
		return workflow.Result{}, fmt.Errorf("%w: session %d has no pending wait", domain.ErrConflict, sessionID)
	}

	result := g.engine.Resume(ctx, sessionID, *session.ResumeURL, decision)
	if !result.OK() {
		return result, fmt.Errorf("%w: resume relay: %s", domain.ErrUpstream, result.Message())
	}

	g.log.Info().Int64("session_id", sessionID).Str("action", decision.Action).Msg("decision relayed")
	g.events.Publish(realtime.Event{
		Name:      EventSessionAction,
		SessionID: sessionScope(sessionID),
		Data:      map[string]any{"action": decision.Action, "ideaIndex": decision.IdeaIndex},
	})
	return result, nil
}
