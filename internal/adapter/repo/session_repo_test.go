package repo

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"contentfactory/internal/domain"
	"contentfactory/internal/sqlinline"
)

func TestSessionRepositoryGetNotFound(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QSelectSession, valueRow{err: pgx.ErrNoRows})

	_, err := NewSessionRepository(sql).Get(context.Background(), 99)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepositoryCreateReturnsRow(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QInsertSession, sessionRow(domain.Session{
		ID: 12, Source: "web", Status: domain.SessionStatusCreated,
		ProductName: "Widget X", Marketplace: "WB", ProductArticles: domain.Document(`[]`),
		CreatedAt: testTime, UpdatedAt: testTime,
	}))

	attrs := domain.NewSession{ProductName: "Widget X", Marketplace: "WB"}
	if err := attrs.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	session, err := NewSessionRepository(sql).Create(context.Background(), attrs)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.ID != 12 || session.Status != domain.SessionStatusCreated {
		t.Fatalf("unexpected session: %+v", session)
	}
	call, _ := sql.lastCall(sqlinline.QInsertSession)
	if call.args[0] != "web" || call.args[1] != "Widget X" {
		t.Fatalf("unexpected insert args: %#v", call.args)
	}
}

func TestSessionRepositoryCancelPublishedIsConflict(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QTransitionSession, valueRow{err: pgx.ErrNoRows})
	sql.onRow(sqlinline.QSelectSession, sessionRow(domain.Session{ID: 5, Status: domain.SessionStatusPublished}))

	_, err := NewSessionRepository(sql).Transition(context.Background(), 5, domain.SessionStatusCancelled, domain.TransitionExtra{})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	call, ok := sql.lastCall(sqlinline.QTransitionSession)
	if !ok {
		t.Fatalf("transition statement not executed")
	}
	sources, _ := call.args[4].([]string)
	for _, s := range sources {
		if s == string(domain.SessionStatusPublished) {
			t.Fatalf("published must not be a cancel source: %v", sources)
		}
	}
	if len(sources) != len(domain.SessionStatuses)-1 {
		t.Fatalf("unexpected cancel sources: %v", sources)
	}
}

func TestSessionRepositoryTransitionUnknownSession(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QTransitionSession, valueRow{err: pgx.ErrNoRows})
	sql.onRow(sqlinline.QSelectSession, valueRow{err: pgx.ErrNoRows})

	_, err := NewSessionRepository(sql).Transition(context.Background(), 5, domain.SessionStatusApproved, domain.TransitionExtra{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepositoryApplyUpdateOnTerminalSession(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QApplySessionUpdate, valueRow{err: pgx.ErrNoRows})
	sql.onRow(sqlinline.QSelectSession, sessionRow(domain.Session{ID: 8, Status: domain.SessionStatusCancelled}))

	session, applied, err := NewSessionRepository(sql).ApplyUpdate(context.Background(), domain.SessionUpdate{
		SessionID: 8, Status: domain.SessionStatusProcessing,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatalf("update must not apply to a cancelled session")
	}
	if session.Status != domain.SessionStatusCancelled {
		t.Fatalf("status reverted: %s", session.Status)
	}
}

func TestSessionRepositoryListQuotesSortColumn(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QCountSessions, valueRow{values: []any{2}})
	var listQuery string

	repo := NewSessionRepository(sql)
	_, total, err := repo.List(context.Background(), domain.SessionFilter{Sort: "product_name", Order: "asc", Marketplace: "WB"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	for _, c := range sql.calls {
		if strings.Contains(c.query, "order by") {
			listQuery = c.query
			if c.args[0] != nil || c.args[1] != "WB" || c.args[4] != domain.DefaultPageLimit {
				t.Fatalf("unexpected list args: %#v", c.args)
			}
		}
	}
	if !strings.Contains(listQuery, `order by "product_name" ASC`) {
		t.Fatalf("sort column not quoted from whitelist: %s", listQuery)
	}
}

func TestSessionRepositoryListStorageUnavailable(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QCountSessions, valueRow{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}})

	_, _, err := NewSessionRepository(sql).List(context.Background(), domain.SessionFilter{})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestStepRepositoryUpsertUnknownSession(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QUpsertStep, valueRow{err: &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}})

	running := domain.StepStatusRunning
	update := domain.StepUpdate{SessionID: 404, StepName: "ideas", Status: &running}
	_, err := NewStepRepository(sql).Upsert(context.Background(), update, domain.EvaluateStepUpdate(update))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	call, _ := sql.lastCall(sqlinline.QUpsertStep)
	if call.args[3] != "running" || call.args[9] != true {
		t.Fatalf("unexpected upsert args: %#v", call.args)
	}
}

func TestStepRepositoryUpsertPassesNullStatusWhenAbsent(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QUpsertStep, stepRow(domain.Step{ID: 1, SessionID: 3, StepName: "tts", Status: domain.StepStatusRunning, CreatedAt: testTime}))

	update := domain.StepUpdate{SessionID: 3, StepName: "tts", OutputData: domain.Document(`{"a":1}`)}
	step, err := NewStepRepository(sql).Upsert(context.Background(), update, domain.EvaluateStepUpdate(update))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if step.StepName != "tts" {
		t.Fatalf("unexpected step: %+v", step)
	}
	call, _ := sql.lastCall(sqlinline.QUpsertStep)
	if call.args[3] != nil || call.args[9] != false {
		t.Fatalf("absent status must not change status or current_step: %#v", call.args)
	}
}
