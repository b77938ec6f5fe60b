package repo

import (
	"context"
	"errors"
	"testing"

	"contentfactory/internal/domain"
)

func TestMemoryLedgerStepReplayKeepsOneRow(t *testing.T) {
	mem := NewMemoryLedger()
	ledger := mem.Ledger()
	ctx := context.Background()
	session := mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing})

	running := domain.StepStatusRunning
	update := domain.StepUpdate{SessionID: session.ID, StepName: "ideas", Status: &running}
	for i := 0; i < 3; i++ {
		if _, err := ledger.Steps.Upsert(ctx, update, domain.EvaluateStepUpdate(update)); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	steps, err := ledger.Steps.ListBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected one step row, got %d", len(steps))
	}
	got, _ := ledger.Sessions.Get(ctx, session.ID)
	if got.CurrentStep == nil || *got.CurrentStep != "ideas" {
		t.Fatalf("current_step not mirrored: %v", got.CurrentStep)
	}
}

func TestMemoryLedgerCompletedStepDoesNotMoveCurrentStep(t *testing.T) {
	mem := NewMemoryLedger()
	ledger := mem.Ledger()
	ctx := context.Background()
	current := "tts"
	session := mem.PutSession(domain.Session{Status: domain.SessionStatusProcessing, CurrentStep: &current})

	completed := domain.StepStatusCompleted
	update := domain.StepUpdate{SessionID: session.ID, StepName: "ideas", Status: &completed}
	if _, err := ledger.Steps.Upsert(ctx, update, domain.EvaluateStepUpdate(update)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ := ledger.Sessions.Get(ctx, session.ID)
	if *got.CurrentStep != "tts" {
		t.Fatalf("completed step moved current_step to %q", *got.CurrentStep)
	}
}

func TestMemoryLedgerCostForUnknownSession(t *testing.T) {
	ledger := NewMemoryLedger().Ledger()
	missing := int64(77)
	_, err := ledger.Costs.Append(context.Background(), domain.CostEntry{SessionID: &missing, Provider: "openai", Model: "gpt-4o"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryLedgerUnavailable(t *testing.T) {
	mem := NewMemoryLedger()
	mem.SetUnavailable(true)
	if err := mem.Ping(context.Background()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("ping: expected ErrStorageUnavailable, got %v", err)
	}
	_, _, err := mem.Ledger().Sessions.List(context.Background(), domain.SessionFilter{})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("list: expected ErrStorageUnavailable, got %v", err)
	}
}

func TestMemoryLedgerListSortsAndFilters(t *testing.T) {
	mem := NewMemoryLedger()
	mem.PutSession(domain.Session{ProductName: "Boots", Marketplace: "WB", Status: domain.SessionStatusCreated})
	mem.PutSession(domain.Session{ProductName: "Apron", Marketplace: "WB", Status: domain.SessionStatusCreated})
	mem.PutSession(domain.Session{ProductName: "Cap", Marketplace: "OZON", Status: domain.SessionStatusCreated})

	sessions, total, err := mem.Ledger().Sessions.List(context.Background(), domain.SessionFilter{
		Marketplace: "WB", Sort: "product_name", Order: "asc",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(sessions) != 2 {
		t.Fatalf("expected 2 WB sessions, got total=%d len=%d", total, len(sessions))
	}
	if sessions[0].ProductName != "Apron" || sessions[1].ProductName != "Boots" {
		t.Fatalf("unexpected order: %s, %s", sessions[0].ProductName, sessions[1].ProductName)
	}
}
