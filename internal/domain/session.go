package domain

import (
	"fmt"
	"strings"
	"time"
)

// SessionStatus enumerates pipeline session lifecycle states.
type SessionStatus string

const (
	SessionStatusCreated        SessionStatus = "created"
	SessionStatusProcessing     SessionStatus = "processing"
	SessionStatusReadyForReview SessionStatus = "ready_for_review"
	SessionStatusApproved       SessionStatus = "approved"
	SessionStatusPublishing     SessionStatus = "publishing"
	SessionStatusPublished      SessionStatus = "published"
	SessionStatusRejected       SessionStatus = "rejected"
	SessionStatusError          SessionStatus = "error"
	SessionStatusCancelled      SessionStatus = "cancelled"
)

// SessionStatuses lists every accepted status in lifecycle order.
var SessionStatuses = []SessionStatus{
	SessionStatusCreated,
	SessionStatusProcessing,
	SessionStatusReadyForReview,
	SessionStatusApproved,
	SessionStatusPublishing,
	SessionStatusPublished,
	SessionStatusRejected,
	SessionStatusError,
	SessionStatusCancelled,
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	for _, known := range SessionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether callbacks may no longer move the session.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusPublished || s == SessionStatusCancelled
}

// ParseSessionStatus validates a raw status string.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	status := SessionStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		names := make([]string, 0, len(SessionStatuses))
		for _, s := range SessionStatuses {
			names = append(names, string(s))
		}
		return "", fmt.Errorf("%w: unknown session status %q (allowed: %s)", ErrValidation, raw, strings.Join(names, ", "))
	}
	return status, nil
}

// Session is one content-production job.
type Session struct {
	ID                 int64         `json:"id"`
	UserID             int64         `json:"user_id"`
	ChatID             int64         `json:"chat_id"`
	Source             string        `json:"source"`
	Status             SessionStatus `json:"status"`
	CurrentStep        *string       `json:"current_step"`
	ResumeURL          *string       `json:"resume_url"`
	ErrorMessage       *string       `json:"error_message"`
	ErrorStep          *string       `json:"error_step"`
	IdeaID             *int64        `json:"idea_id"`
	VoiceScriptID      *int64        `json:"voice_script_id"`
	VideoPromptID      *int64        `json:"video_prompt_id"`
	ProductName        string        `json:"product_name"`
	ProductArticles    Document      `json:"product_articles"`
	ProductDescription string        `json:"product_description"`
	Marketplace        string        `json:"marketplace"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// AwaitingDecision reports whether the workflow engine is paused on a human decision.
func (s Session) AwaitingDecision() bool {
	return s.ResumeURL != nil && strings.TrimSpace(*s.ResumeURL) != ""
}

// NewSession carries the attributes accepted when a session is created.
type NewSession struct {
	UserLogin          string
	Source             string
	ProductName        string
	ProductArticles    Document
	ProductDescription string
	Marketplace        string
	IdeaID             *int64
	VoiceScriptID      *int64
	VideoPromptID      *int64
}

// Validate trims the attributes and checks required fields.
func (n *NewSession) Validate() error {
	n.ProductName = strings.TrimSpace(n.ProductName)
	n.Marketplace = strings.TrimSpace(n.Marketplace)
	n.Source = strings.TrimSpace(n.Source)
	if n.ProductName == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if n.Marketplace == "" {
		return fmt.Errorf("%w: marketplace is required", ErrValidation)
	}
	if n.Source == "" {
		n.Source = "web"
	}
	if !n.ProductArticles.Present() {
		n.ProductArticles = Document(`[]`)
	}
	return nil
}

// SessionUpdate is a status report from the workflow engine.
type SessionUpdate struct {
	SessionID    int64
	Status       SessionStatus
	CurrentStep  *string
	ErrorMessage *string
	ErrorStep    *string
	ResumeURL    *string
}

// Validate checks the required fields of a status report.
func (u SessionUpdate) Validate() error {
	if u.SessionID <= 0 {
		return fmt.Errorf("%w: sessionId is required", ErrValidation)
	}
	if !u.Status.Valid() {
		_, err := ParseSessionStatus(string(u.Status))
		return err
	}
	return nil
}

// ApplySessionUpdate folds a status report into the stored session. Reports
// against a terminal session are not applied and the session is returned
// unchanged with applied=false.
//
// Every report restates the wait point: a non-empty ResumeURL marks the
// session as awaiting a decision, an absent one frees it. Error context is
// kept while the session stays in error and replaced otherwise.
func ApplySessionUpdate(existing Session, u SessionUpdate, now time.Time) (Session, bool) {
	if existing.Status.Terminal() {
		return existing, false
	}
	out := existing
	out.Status = u.Status
	if u.CurrentStep != nil {
		out.CurrentStep = u.CurrentStep
	}
	if u.Status == SessionStatusError {
		if u.ErrorMessage != nil {
			out.ErrorMessage = u.ErrorMessage
		}
		if u.ErrorStep != nil {
			out.ErrorStep = u.ErrorStep
		}
	} else {
		out.ErrorMessage = u.ErrorMessage
		out.ErrorStep = u.ErrorStep
	}
	out.ResumeURL = nil
	if u.ResumeURL != nil && strings.TrimSpace(*u.ResumeURL) != "" && !u.Status.Terminal() {
		resume := strings.TrimSpace(*u.ResumeURL)
		out.ResumeURL = &resume
	}
	out.UpdatedAt = now
	return out, true
}

// TransitionExtra carries optional fields written together with a transition.
type TransitionExtra struct {
	CurrentStep  *string
	ErrorMessage *string
}

// TransitionSources returns the statuses from which a human-initiated
// transition into target is legal.
func TransitionSources(target SessionStatus) []SessionStatus {
	switch target {
	case SessionStatusApproved, SessionStatusRejected:
		return []SessionStatus{SessionStatusReadyForReview}
	case SessionStatusCancelled:
		out := make([]SessionStatus, 0, len(SessionStatuses)-1)
		for _, s := range SessionStatuses {
			if s != SessionStatusPublished {
				out = append(out, s)
			}
		}
		return out
	default:
		return NonTerminalStatuses()
	}
}

// NonTerminalStatuses lists the statuses callbacks may still move out of.
func NonTerminalStatuses() []SessionStatus {
	out := make([]SessionStatus, 0, len(SessionStatuses))
	for _, s := range SessionStatuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// CheckTransition validates a human-initiated transition from -> to.
func CheckTransition(from, to SessionStatus) error {
	if !to.Valid() {
		_, err := ParseSessionStatus(string(to))
		return err
	}
	for _, src := range TransitionSources(to) {
		if src == from {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move session from %s to %s", ErrConflict, from, to)
}

// ApplyTransition returns the session after a legal transition.
func ApplyTransition(existing Session, to SessionStatus, extra TransitionExtra, now time.Time) Session {
	out := existing
	out.Status = to
	if extra.CurrentStep != nil {
		out.CurrentStep = extra.CurrentStep
	}
	if extra.ErrorMessage != nil {
		out.ErrorMessage = extra.ErrorMessage
	}
	if to.Terminal() {
		out.ResumeURL = nil
	}
	out.UpdatedAt = now
	return out
}

// StatusStrings converts statuses for use as a text[] parameter.
func StatusStrings(statuses []SessionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
