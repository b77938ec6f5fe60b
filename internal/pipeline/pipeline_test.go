package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"contentfactory/internal/adapter/repo"
	"contentfactory/internal/domain"
	"contentfactory/internal/workflow"
)

type harness struct {
	mem      *repo.MemoryLedger
	engine   *fakeEngine
	events   *recordingPublisher
	sessions *Sessions
	ingress  *Ingress
	gate     *ResumeGate
}

func newHarness() *harness {
	mem := repo.NewMemoryLedger()
	ledger := mem.Ledger()
	engine := newFakeEngine()
	events := &recordingPublisher{}
	log := zerolog.Nop()
	return &harness{
		mem:      mem,
		engine:   engine,
		events:   events,
		sessions: NewSessions(ledger, engine, events, log),
		ingress:  NewIngress(ledger, events, staticLocator("https://cdn.test"), log),
		gate:     NewResumeGate(ledger.Sessions, engine, events, log),
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func stepStatus(s domain.StepStatus) *domain.StepStatus { return &s }

func TestNormalRun(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	session, res, err := h.sessions.Create(ctx, domain.NewSession{ProductName: "  Widget X ", Marketplace: "WB", UserLogin: "anna"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.Status != domain.SessionStatusCreated || session.ProductName != "Widget X" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if !res.OK() || len(h.engine.starts) != 1 || h.engine.starts[0].SessionID != session.ID {
		t.Fatalf("pipeline not triggered: %+v", h.engine.starts)
	}
	id := session.ID

	if _, err := h.ingress.StepUpdate(ctx, domain.StepUpdate{SessionID: id, StepName: "ideas", Status: stepStatus(domain.StepStatusRunning)}); err != nil {
		t.Fatalf("step running: %v", err)
	}
	detail, _ := h.sessions.Detail(ctx, id)
	if detail.Session.CurrentStep == nil || *detail.Session.CurrentStep != "ideas" {
		t.Fatalf("current_step = %v, want ideas", detail.Session.CurrentStep)
	}

	step, err := h.ingress.StepUpdate(ctx, domain.StepUpdate{SessionID: id, StepName: "ideas", Status: stepStatus(domain.StepStatusCompleted)})
	if err != nil {
		t.Fatalf("step completed: %v", err)
	}
	if step.Status != domain.StepStatusCompleted || step.CompletedAt == nil || step.StartedAt == nil {
		t.Fatalf("unexpected step: %+v", step)
	}

	waiting, applied, err := h.ingress.SessionUpdate(ctx, domain.SessionUpdate{
		SessionID: id, Status: domain.SessionStatusReadyForReview, ResumeURL: strPtr("http://n8n:5678/webhook-waiting/991"),
	})
	if err != nil || !applied {
		t.Fatalf("session-update: applied=%v err=%v", applied, err)
	}
	if !waiting.AwaitingDecision() {
		t.Fatalf("session should await a decision")
	}

	if _, err := h.gate.Submit(ctx, id, workflow.Decision{Action: ActionApprove}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(h.engine.resumes) != 1 || h.engine.resumes[0].url != "http://n8n:5678/webhook-waiting/991" {
		t.Fatalf("expected one relay to the wait point, got %+v", h.engine.resumes)
	}
	stillWaiting, _ := h.sessions.Detail(ctx, id)
	if !stillWaiting.Session.AwaitingDecision() || stillWaiting.Session.Status != domain.SessionStatusReadyForReview {
		t.Fatalf("the gate must not write the ledger: %+v", stillWaiting.Session)
	}

	freed, applied, err := h.ingress.SessionUpdate(ctx, domain.SessionUpdate{SessionID: id, Status: domain.SessionStatusApproved})
	if err != nil || !applied {
		t.Fatalf("approved update: applied=%v err=%v", applied, err)
	}
	if freed.AwaitingDecision() || freed.Status != domain.SessionStatusApproved {
		t.Fatalf("session should be free and approved: %+v", freed)
	}

	want := []string{EventSessionCreated, EventStepUpdate, EventStepUpdate, EventSessionUpdate, EventSessionAction, EventSessionUpdate}
	got := h.events.names()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestCostAggregation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	session, _, _ := h.sessions.Create(ctx, domain.NewSession{ProductName: "Widget X", Marketplace: "WB"})
	sid := session.ID

	reports := []domain.CostReport{
		{SessionID: &sid, Provider: "openai", Model: "gpt-4o", PromptTokens: intPtr(100), CompletionTokens: intPtr(50), CostUSD: floatPtr(0.01)},
		{SessionID: &sid, Provider: "openai", Model: "gpt-4o", PromptTokens: intPtr(120), CompletionTokens: intPtr(30), CostUSD: floatPtr(0.02)},
		{SessionID: &sid, Provider: "elevenlabs", Model: "tts", TotalTokens: intPtr(50), CostUSD: floatPtr(0.005)},
	}
	for _, r := range reports {
		if _, err := h.ingress.ReportCost(ctx, r); err != nil {
			t.Fatalf("cost: %v", err)
		}
	}

	detail, err := h.sessions.Detail(ctx, sid)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.CostSummary.Entries != 3 || detail.CostSummary.TotalTokens != 350 {
		t.Fatalf("unexpected summary: %+v", detail.CostSummary)
	}
	if math.Abs(detail.CostSummary.TotalCostUSD-0.035) > 1e-9 {
		t.Fatalf("total cost = %v, want 0.035", detail.CostSummary.TotalCostUSD)
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestCostRequiresProviderAndModel(t *testing.T) {
	h := newHarness()
	_, err := h.ingress.ReportCost(context.Background(), domain.CostReport{Provider: "openai"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDegradedStore(t *testing.T) {
	h := newHarness()
	h.mem.SetUnavailable(true)
	ctx := context.Background()

	if _, _, err := h.sessions.List(ctx, domain.SessionFilter{}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("list: expected ErrStorageUnavailable, got %v", err)
	}
	if _, _, err := h.sessions.Create(ctx, domain.NewSession{ProductName: "Widget X", Marketplace: "WB"}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("create: expected ErrStorageUnavailable, got %v", err)
	}
	if len(h.engine.starts) != 0 {
		t.Fatalf("engine must not be triggered without a committed session")
	}
	_, err := h.ingress.StepUpdate(ctx, domain.StepUpdate{SessionID: 1, StepName: "ideas", Status: stepStatus(domain.StepStatusRunning)})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("step-update: expected ErrStorageUnavailable, got %v", err)
	}
	if n := len(h.events.names()); n != 0 {
		t.Fatalf("no events expected while degraded, got %d", n)
	}
}

func TestStepReplayIsIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})

	update := domain.StepUpdate{SessionID: session.ID, StepName: "tts", Status: stepStatus(domain.StepStatusCompleted), TokensUsed: intPtr(42)}
	first, err := h.ingress.StepUpdate(ctx, update)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	for i := 0; i < 2; i++ {
		again, err := h.ingress.StepUpdate(ctx, update)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if again.ID != first.ID || !again.CompletedAt.Equal(*first.CompletedAt) || again.TokensUsed != 42 {
			t.Fatalf("replay changed the step: %+v vs %+v", again, first)
		}
	}
	detail, _ := h.sessions.Detail(ctx, session.ID)
	if len(detail.Steps) != 1 {
		t.Fatalf("expected one step, got %d", len(detail.Steps))
	}
}

func TestStepUpdateValidation(t *testing.T) {
	h := newHarness()
	bogus := domain.StepStatus("sleeping")
	cases := []domain.StepUpdate{
		{StepName: "ideas"},
		{SessionID: 1, StepName: "   "},
		{SessionID: 1, StepName: "ideas", Status: &bogus},
	}
	for _, c := range cases {
		if _, err := h.ingress.StepUpdate(context.Background(), c); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", c, err)
		}
	}
}

func TestStepUpdateUnknownSession(t *testing.T) {
	h := newHarness()
	_, err := h.ingress.StepUpdate(context.Background(), domain.StepUpdate{SessionID: 404, StepName: "ideas"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelPublishedConflicts(t *testing.T) {
	h := newHarness()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusPublished})

	_, err := h.sessions.Cancel(context.Background(), session.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if h.events.count(EventSessionCancelled) != 0 {
		t.Fatalf("no cancel event expected")
	}
}

func TestCancelClearsWaitPoint(t *testing.T) {
	h := newHarness()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusReadyForReview, ResumeURL: strPtr("http://n8n/wait/1")})

	cancelled, err := h.sessions.Cancel(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.SessionStatusCancelled || cancelled.ResumeURL != nil {
		t.Fatalf("unexpected session: %+v", cancelled)
	}
	if _, err := h.sessions.Cancel(context.Background(), 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
}

func TestSessionUpdateOnTerminalSessionIsIgnored(t *testing.T) {
	h := newHarness()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusCancelled})

	got, applied, err := h.ingress.SessionUpdate(context.Background(), domain.SessionUpdate{SessionID: session.ID, Status: domain.SessionStatusProcessing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied || got.Status != domain.SessionStatusCancelled {
		t.Fatalf("terminal session changed: applied=%v status=%s", applied, got.Status)
	}
	if h.events.count(EventSessionUpdate) != 0 {
		t.Fatalf("ignored update must not be broadcast")
	}
}

func TestSessionUpdateRejectsUnknownStatus(t *testing.T) {
	h := newHarness()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})
	_, _, err := h.ingress.SessionUpdate(context.Background(), domain.SessionUpdate{SessionID: session.ID, Status: "finished"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResumeWithoutWaitPoint(t *testing.T) {
	h := newHarness()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})

	_, err := h.gate.Submit(context.Background(), session.ID, workflow.Decision{Action: ActionApprove})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(h.engine.resumes) != 0 {
		t.Fatalf("no outbound call expected")
	}
}

func TestResumeValidatesAction(t *testing.T) {
	h := newHarness()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusReadyForReview, ResumeURL: strPtr("http://n8n/wait/2")})

	if _, err := h.gate.Submit(context.Background(), session.ID, workflow.Decision{Action: "skip"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := h.gate.Submit(context.Background(), session.ID, workflow.Decision{Action: ActionSelectIdea, IdeaIndex: intPtr(-1)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative index, got %v", err)
	}
	if len(h.engine.resumes) != 0 {
		t.Fatalf("no outbound call expected")
	}
}

func TestResumeRelayFailureKeepsSessionAwaiting(t *testing.T) {
	h := newHarness()
	h.engine.result = workflow.Result{Outcome: workflow.OutcomeTimeout, Err: errors.New("timed out")}
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusReadyForReview, ResumeURL: strPtr("http://n8n/wait/3")})

	res, err := h.gate.Submit(context.Background(), session.ID, workflow.Decision{Action: ActionSelectIdea, IdeaIndex: intPtr(1)})
	if !errors.Is(err, domain.ErrUpstream) || res.Outcome != workflow.OutcomeTimeout {
		t.Fatalf("expected upstream timeout, got %v (%s)", err, res.Outcome)
	}
	detail, _ := h.sessions.Detail(context.Background(), session.ID)
	if !detail.Session.AwaitingDecision() {
		t.Fatalf("session must stay awaiting after a failed relay")
	}
	if h.events.count(EventSessionAction) != 0 {
		t.Fatalf("failed relay must not be broadcast")
	}

	h.engine.result = workflow.Result{Outcome: workflow.OutcomeSuccess}
	if _, err := h.gate.Submit(context.Background(), session.ID, workflow.Decision{Action: ActionSelectIdea, IdeaIndex: intPtr(1)}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(h.engine.resumes) != 2 {
		t.Fatalf("expected two relay attempts in total, got %d", len(h.engine.resumes))
	}
}

func TestCreateKeepsSessionWhenTriggerFails(t *testing.T) {
	h := newHarness()
	h.engine.result = workflow.Result{Outcome: workflow.OutcomeUpstreamError, StatusCode: 500, Err: errors.New("boom")}

	session, res, err := h.sessions.Create(context.Background(), domain.NewSession{ProductName: "Widget X", Marketplace: "WB"})
	if err != nil {
		t.Fatalf("create must not fail on trigger errors: %v", err)
	}
	if res.OK() {
		t.Fatalf("expected failed trigger result")
	}
	detail, err := h.sessions.Detail(context.Background(), session.ID)
	if err != nil || detail.Session.Status != domain.SessionStatusCreated {
		t.Fatalf("session not kept: %+v err=%v", detail, err)
	}
}

func TestCreateTriggerSurvivesClientDisconnect(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, _, err := h.sessions.Create(ctx, domain.NewSession{ProductName: "Widget", Marketplace: "WB"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(h.engine.starts) != 1 || h.engine.starts[0].SessionID != session.ID {
		t.Fatalf("pipeline not triggered: %+v", h.engine.starts)
	}
	if h.engine.startErrs[0] != nil {
		t.Fatalf("trigger context inherited cancellation: %v", h.engine.startErrs[0])
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness()
	_, _, err := h.sessions.Create(context.Background(), domain.NewSession{ProductName: "  ", Marketplace: "WB"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(h.engine.starts) != 0 {
		t.Fatalf("no trigger expected for invalid input")
	}
}

func TestApproveRejectGuard(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	review := h.mem.PutSession(domain.Session{Status: domain.SessionStatusReadyForReview})
	busy := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})

	approved, err := h.sessions.Approve(ctx, review.ID)
	if err != nil || approved.Status != domain.SessionStatusApproved || *approved.CurrentStep != "approved" {
		t.Fatalf("approve: %+v err=%v", approved, err)
	}
	if _, err := h.sessions.Reject(ctx, busy.ID, "blurry"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	other := h.mem.PutSession(domain.Session{Status: domain.SessionStatusReadyForReview})
	rejected, err := h.sessions.Reject(ctx, other.ID, " blurry ")
	if err != nil || rejected.ErrorMessage == nil || *rejected.ErrorMessage != "blurry" {
		t.Fatalf("reject: %+v err=%v", rejected, err)
	}
}

func TestPublishRelay(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	busy := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})
	if _, err := h.sessions.Publish(ctx, busy.ID, PublishOptions{}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	approved := h.mem.PutSession(domain.Session{Status: domain.SessionStatusApproved})
	if _, err := h.sessions.Publish(ctx, approved.ID, PublishOptions{Caption: "hi"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	req := h.engine.publishes[0]
	if len(req.Channels) != 1 || req.Channels[0] != "telegram" || !req.GenerateCaption {
		t.Fatalf("unexpected publish defaults: %+v", req)
	}

	h.engine.result = workflow.Result{Outcome: workflow.OutcomeUpstreamError, StatusCode: 502}
	if _, err := h.sessions.Publish(ctx, approved.ID, PublishOptions{}); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	detail, _ := h.sessions.Detail(ctx, approved.ID)
	if detail.Session.Status != domain.SessionStatusApproved {
		t.Fatalf("publish relay must not change status")
	}
}

func TestWorkflowErrorIsDataNotFault(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})
	sid := session.ID

	if _, err := h.ingress.ReportError(ctx, domain.WorkflowError{SessionID: &sid, WorkflowName: "video-factory", ErrorMessage: "ffmpeg exited 1"}); err != nil {
		t.Fatalf("report error: %v", err)
	}
	if _, err := h.ingress.LogError(ctx, domain.WorkflowError{}); err != nil {
		t.Fatalf("log-error with defaults: %v", err)
	}
	if _, err := h.ingress.ReportError(ctx, domain.WorkflowError{WorkflowName: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	records, total, err := h.sessions.Errors(ctx, domain.ErrorFilter{})
	if err != nil || total != 2 {
		t.Fatalf("errors: total=%d err=%v", total, err)
	}
	if records[0].WorkflowName != "unknown" || records[0].ErrorMessage != "Unknown error" {
		t.Fatalf("log-error defaults not applied: %+v", records[0])
	}
	detail, _ := h.sessions.Detail(ctx, sid)
	if detail.Session.Status != domain.SessionStatusProcessing {
		t.Fatalf("workflow error must not change session state")
	}
	if h.events.count(EventWorkflowError) != 2 {
		t.Fatalf("each persisted error is broadcast, got %v", h.events.names())
	}
}

func TestLedgerCallbacksPublishWithSessionScope(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})
	sid := session.ID

	if _, err := h.ingress.ReportError(ctx, domain.WorkflowError{SessionID: &sid, WorkflowName: "video-factory", ErrorMessage: "boom"}); err != nil {
		t.Fatalf("report error: %v", err)
	}
	if _, err := h.ingress.ReportCost(ctx, domain.CostReport{SessionID: &sid, Provider: "openai", Model: "gpt-4o"}); err != nil {
		t.Fatalf("report cost: %v", err)
	}
	if _, _, err := h.ingress.RegisterMedia(ctx, domain.MediaFile{SessionID: &sid, FileKey: "a.png", FileName: "a.png"}); err != nil {
		t.Fatalf("register media: %v", err)
	}
	if _, err := h.ingress.ReportError(ctx, domain.WorkflowError{WorkflowName: "cleanup", ErrorMessage: "timeout"}); err != nil {
		t.Fatalf("report unscoped error: %v", err)
	}
	if _, err := h.ingress.ReportCost(ctx, domain.CostReport{Provider: "openai", Model: "gpt-4o"}); err != nil {
		t.Fatalf("report unscoped cost: %v", err)
	}
	if _, _, err := h.ingress.RegisterMedia(ctx, domain.MediaFile{FileKey: "b.png", FileName: "b.png"}); err != nil {
		t.Fatalf("register unscoped media: %v", err)
	}

	want := []struct {
		name   string
		scoped bool
	}{
		{EventWorkflowError, true},
		{EventCostUpdate, true},
		{EventMediaAdded, true},
		{EventWorkflowError, false},
		{EventCostUpdate, false},
		{EventMediaAdded, false},
	}
	if len(h.events.events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), h.events.names())
	}
	for i, w := range want {
		ev := h.events.events[i]
		if ev.Name != w.name {
			t.Fatalf("event %d: got %s, want %s", i, ev.Name, w.name)
		}
		if w.scoped && (ev.SessionID == nil || *ev.SessionID != sid) {
			t.Fatalf("event %d (%s) not scoped to session %d: %v", i, ev.Name, sid, ev.SessionID)
		}
		if !w.scoped && ev.SessionID != nil {
			t.Fatalf("event %d (%s) must be global only, got session %d", i, ev.Name, *ev.SessionID)
		}
	}
}

func TestRegisterMediaReturnsURL(t *testing.T) {
	h := newHarness()
	session := h.mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})
	sid := session.ID

	file, url, err := h.ingress.RegisterMedia(context.Background(), domain.MediaFile{SessionID: &sid, FileKey: "videos/final.mp4", FileName: "final.mp4"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if url != "https://cdn.test/videos/final.mp4" || file.FileType != "document" || file.Source != "n8n" {
		t.Fatalf("unexpected media: %+v url=%s", file, url)
	}
	if _, _, err := h.ingress.RegisterMedia(context.Background(), domain.MediaFile{FileKey: "a"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNotifyRelaysReadiness(t *testing.T) {
	h := newHarness()
	sid := int64(5)
	h.ingress.Notify(EventVideoReady, &sid, map[string]any{"final_video_url": "https://cdn.test/v.mp4"})
	if len(h.events.events) != 1 {
		t.Fatalf("expected one event")
	}
	ev := h.events.events[0]
	if ev.Name != EventVideoReady || *ev.SessionID != 5 || ev.Data["timestamp"] == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
