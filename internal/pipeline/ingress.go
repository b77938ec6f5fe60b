package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"contentfactory/internal/domain"
	"contentfactory/internal/realtime"
)

// Ingress applies callbacks from the workflow engine to the ledger and
// pushes the resulting changes to the fan-out. Every callback is validated
// before any write.
type Ingress struct {
	ledger domain.Ledger
	events realtime.Publisher
	media  MediaLocator
	log    zerolog.Logger
	now    func() time.Time
}

// NewIngress wires the callback service. media may be nil.
func NewIngress(ledger domain.Ledger, events realtime.Publisher, media MediaLocator, log zerolog.Logger) *Ingress {
	return &Ingress{
		ledger: ledger,
		events: publisherOrNop(events),
		media:  media,
		log:    log.With().Str("component", "ingress").Logger(),
		now:    time.Now,
	}
}

// StepUpdate records a step report. Replaying the same report leaves the
// ledger unchanged.
func (in *Ingress) StepUpdate(ctx context.Context, update domain.StepUpdate) (*domain.Step, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	effects := domain.EvaluateStepUpdate(update)
	step, err := in.ledger.Steps.Upsert(ctx, update, effects)
	if err != nil {
		return nil, err
	}
	in.events.Publish(realtime.Event{
		Name:      EventStepUpdate,
		SessionID: sessionScope(update.SessionID),
		Data: map[string]any{
			"sessionId": update.SessionID,
			"stepName":  step.StepName,
			"status":    step.Status,
		},
	})
	return step, nil
}

// SessionUpdate applies a status report. Reports for published or cancelled
// sessions are acknowledged and ignored; applied is false for them.
func (in *Ingress) SessionUpdate(ctx context.Context, update domain.SessionUpdate) (*domain.Session, bool, error) {
	if err := update.Validate(); err != nil {
		return nil, false, err
	}
	session, applied, err := in.ledger.Sessions.ApplyUpdate(ctx, update)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		in.log.Info().
			Int64("session_id", update.SessionID).
			Str("status", string(session.Status)).
			Str("reported", string(update.Status)).
			Bool("ignored", true).
			Msg("session-update for terminal session")
		return session, false, nil
	}
	in.events.Publish(realtime.Event{
		Name:      EventSessionUpdate,
		SessionID: sessionScope(update.SessionID),
		Data: map[string]any{
			"sessionId":        update.SessionID,
			"status":           session.Status,
			"currentStep":      session.CurrentStep,
			"awaitingDecision": session.AwaitingDecision(),
		},
	})
	return session, true, nil
}

// ReportError persists an engine execution error. It is data about the run
// and never changes session state.
func (in *Ingress) ReportError(ctx context.Context, record domain.WorkflowError) (*domain.WorkflowError, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	saved, err := in.ledger.Errors.Append(ctx, record)
	if err != nil {
		return nil, err
	}
	in.events.Publish(realtime.Event{
		Name:      EventWorkflowError,
		SessionID: saved.SessionID,
		Data: map[string]any{
			"sessionId":    record.SessionID,
			"workflowName": record.WorkflowName,
			"nodeName":     record.NodeName,
			"errorMessage": record.ErrorMessage,
			"timestamp":    timestamp(in.now),
		},
	})
	return saved, nil
}

// LogError is the lenient form of ReportError used by workflow nodes that
// cannot guarantee their payload.
func (in *Ingress) LogError(ctx context.Context, record domain.WorkflowError) (*domain.WorkflowError, error) {
	if record.WorkflowName == "" {
		record.WorkflowName = "unknown"
	}
	if record.ErrorMessage == "" {
		record.ErrorMessage = "Unknown error"
	}
	return in.ReportError(ctx, record)
}

// ReportCost appends a cost entry.
func (in *Ingress) ReportCost(ctx context.Context, report domain.CostReport) (*domain.CostEntry, error) {
	entry, err := report.Entry()
	if err != nil {
		return nil, err
	}
	saved, err := in.ledger.Costs.Append(ctx, entry)
	if err != nil {
		return nil, err
	}
	in.events.Publish(realtime.Event{
		Name:      EventCostUpdate,
		SessionID: saved.SessionID,
		Data: map[string]any{
			"sessionId":   saved.SessionID,
			"provider":    saved.Provider,
			"model":       saved.Model,
			"tokensTotal": saved.TotalTokens,
			"costUsd":     saved.CostUSD,
		},
	})
	return saved, nil
}

// RegisterMedia records a pointer to an object the engine stored and returns
// its public URL when a locator is configured.
func (in *Ingress) RegisterMedia(ctx context.Context, file domain.MediaFile) (*domain.MediaFile, string, error) {
	if err := file.Normalize(); err != nil {
		return nil, "", err
	}
	saved, err := in.ledger.Media.Register(ctx, file)
	if err != nil {
		return nil, "", err
	}
	var url string
	if in.media != nil {
		u, err := in.media.URL(saved.FileKey)
		if err != nil {
			in.log.Warn().Err(err).Str("file_key", saved.FileKey).Msg("media url")
		} else {
			url = u
		}
	}
	in.events.Publish(realtime.Event{
		Name:      EventMediaAdded,
		SessionID: saved.SessionID,
		Data: map[string]any{
			"sessionId": saved.SessionID,
			"id":        saved.ID,
			"fileName":  saved.FileName,
			"fileType":  saved.FileType,
			"url":       url,
		},
	})
	return saved, url, nil
}

// Notify relays a readiness notification (content, video, card) to the
// fan-out. It touches no ledger state.
func (in *Ingress) Notify(name string, sessionID *int64, data map[string]any) {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["timestamp"] = timestamp(in.now)
	in.events.Publish(realtime.Event{Name: name, SessionID: sessionID, Data: payload})
}
