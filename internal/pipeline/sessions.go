package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"contentfactory/internal/domain"
	"contentfactory/internal/realtime"
	"contentfactory/internal/workflow"
)

// SessionDetail is a session with its steps and cost entries. The session
// fields are encoded at the top level next to steps and costs.
type SessionDetail struct {
	domain.Session
	Steps       []domain.Step      `json:"steps"`
	Costs       []domain.CostEntry `json:"costs"`
	CostSummary domain.CostSummary `json:"costSummary"`
}

// PublishOptions selects the publishing channels for a finished session.
type PublishOptions struct {
	Channels        []string
	Caption         string
	GenerateCaption *bool
}

// Sessions implements the session lifecycle operations used by humans.
type Sessions struct {
	ledger domain.Ledger
	engine Engine
	events realtime.Publisher
	log    zerolog.Logger
}

// NewSessions wires the lifecycle service.
func NewSessions(ledger domain.Ledger, engine Engine, events realtime.Publisher, log zerolog.Logger) *Sessions {
	return &Sessions{
		ledger: ledger,
		engine: engine,
		events: publisherOrNop(events),
		log:    log.With().Str("component", "sessions").Logger(),
	}
}

// Create records a new session and triggers the engine. A failed trigger is
// reported in the returned Result; the committed session is kept. The trigger
// outlives a client disconnect and is bounded by the engine client timeout.
func (s *Sessions) Create(ctx context.Context, attrs domain.NewSession) (*domain.Session, workflow.Result, error) {
	if err := attrs.Validate(); err != nil {
		return nil, workflow.Result{}, err
	}
	session, err := s.ledger.Sessions.Create(ctx, attrs)
	if err != nil {
		return nil, workflow.Result{}, err
	}

	result := s.engine.Start(context.WithoutCancel(ctx), workflow.StartRequest{
		SessionID:          session.ID,
		ChatID:             session.ChatID,
		UserLogin:          attrs.UserLogin,
		ProductName:        session.ProductName,
		ProductArticles:    json.RawMessage(session.ProductArticles.Bytes()),
		Marketplace:        session.Marketplace,
		ProductDescription: session.ProductDescription,
	})
	if !result.OK() {
		s.log.Warn().Int64("session_id", session.ID).Str("outcome", string(result.Outcome)).Msg("session created but pipeline trigger failed")
	}

	s.events.Publish(realtime.Event{
		Name:      EventSessionCreated,
		SessionID: sessionScope(session.ID),
		Data:      map[string]any{"sessionId": session.ID, "status": session.Status},
	})
	return session, result, nil
}

// List returns a page of sessions.
func (s *Sessions) List(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, int, error) {
	if filter.Status != "" {
		if _, err := domain.ParseSessionStatus(filter.Status); err != nil {
			return nil, 0, err
		}
	}
	return s.ledger.Sessions.List(ctx, filter)
}

// Detail returns a session with its steps and costs.
func (s *Sessions) Detail(ctx context.Context, id int64) (*SessionDetail, error) {
	session, err := s.ledger.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.ledger.Steps.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	costs, err := s.ledger.Costs.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{
		Session:     *session,
		Steps:       steps,
		Costs:       costs,
		CostSummary: domain.SummarizeCosts(costs),
	}, nil
}

// Cancel moves a session to cancelled unless it was already published.
// Nothing is sent to the engine; it ignores callbacks for cancelled sessions.
func (s *Sessions) Cancel(ctx context.Context, id int64) (*domain.Session, error) {
	session, err := s.ledger.Sessions.Transition(ctx, id, domain.SessionStatusCancelled, domain.TransitionExtra{})
	if err != nil {
		return nil, err
	}
	s.events.Publish(realtime.Event{
		Name:      EventSessionCancelled,
		SessionID: sessionScope(id),
		Data:      map[string]any{"sessionId": id},
	})
	return session, nil
}

// Approve accepts a session that is ready for review.
func (s *Sessions) Approve(ctx context.Context, id int64) (*domain.Session, error) {
	step := "approved"
	session, err := s.ledger.Sessions.Transition(ctx, id, domain.SessionStatusApproved, domain.TransitionExtra{CurrentStep: &step})
	if err != nil {
		return nil, err
	}
	s.events.Publish(realtime.Event{
		Name:      EventSessionApproved,
		SessionID: sessionScope(id),
		Data:      map[string]any{"session": session},
	})
	return session, nil
}

// Reject turns down a session that is ready for review. The reason is kept
// in error_message.
func (s *Sessions) Reject(ctx context.Context, id int64, reason string) (*domain.Session, error) {
	var extra domain.TransitionExtra
	if r := strings.TrimSpace(reason); r != "" {
		extra.ErrorMessage = &r
	}
	session, err := s.ledger.Sessions.Transition(ctx, id, domain.SessionStatusRejected, extra)
	if err != nil {
		return nil, err
	}
	s.events.Publish(realtime.Event{
		Name:      EventSessionRejected,
		SessionID: sessionScope(id),
		Data:      map[string]any{"session": session},
	})
	return session, nil
}

// Publish relays a publish request to the engine for an approved or
// reviewable session. Status changes arrive later through session-update.
func (s *Sessions) Publish(ctx context.Context, id int64, opts PublishOptions) (workflow.Result, error) {
	session, err := s.ledger.Sessions.Get(ctx, id)
	if err != nil {
		return workflow.Result{}, err
	}
	if session.Status != domain.SessionStatusApproved && session.Status != domain.SessionStatusReadyForReview {
		return workflow.Result{}, fmt.Errorf("%w: session %d is %s, not ready to publish", domain.ErrConflict, id, session.Status)
	}

	channels := make([]string, 0, len(opts.Channels))
	for _, ch := range opts.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		channels = []string{"telegram"}
	}
	generate := true
	if opts.GenerateCaption != nil {
		generate = *opts.GenerateCaption
	}

	result := s.engine.Publish(ctx, workflow.PublishRequest{
		SessionID:       id,
		Channels:        channels,
		Caption:         opts.Caption,
		GenerateCaption: generate,
	})
	if !result.OK() {
		return result, fmt.Errorf("%w: publish relay: %s", domain.ErrUpstream, result.Message())
	}
	return result, nil
}

// Errors lists workflow errors reported by the engine.
func (s *Sessions) Errors(ctx context.Context, filter domain.ErrorFilter) ([]domain.WorkflowError, int, error) {
	return s.ledger.Errors.List(ctx, filter)
}
