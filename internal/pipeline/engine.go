// Package pipeline holds the session services: the lifecycle API, the
// callback ingress fed by the workflow engine and the resume gate.
package pipeline

import (
	"context"
	"time"

	"contentfactory/internal/realtime"
	"contentfactory/internal/workflow"
)

// Engine is the outbound side of the workflow engine.
type Engine interface {
	Start(ctx context.Context, req workflow.StartRequest) workflow.Result
	Resume(ctx context.Context, sessionID int64, resumeURL string, decision workflow.Decision) workflow.Result
	Publish(ctx context.Context, req workflow.PublishRequest) workflow.Result
}

// MediaLocator resolves storage keys to public URLs.
type MediaLocator interface {
	URL(key string) (string, error)
}

// Event names pushed on the fan-out.
const (
	EventSessionCreated   = "session-created"
	EventSessionUpdate    = "session-update"
	EventSessionCancelled = "session-cancelled"
	EventSessionApproved  = "session-approved"
	EventSessionRejected  = "session-rejected"
	EventSessionAction    = "session-action"
	EventStepUpdate       = "step-update"
	EventWorkflowError    = "workflow-error"
	EventCostUpdate       = "cost-update"
	EventMediaAdded       = "media-added"
	EventContentReady     = "content-ready"
	EventVideoReady       = "video-ready"
	EventCardReady        = "card-ready"
)

func publisherOrNop(p realtime.Publisher) realtime.Publisher {
	if p == nil {
		return realtime.Nop{}
	}
	return p
}

func sessionScope(id int64) *int64 {
	return &id
}

func timestamp(now func() time.Time) string {
	return now().UTC().Format(time.RFC3339)
}
