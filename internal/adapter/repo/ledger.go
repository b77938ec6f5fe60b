package repo

import (
	"contentfactory/internal/domain"
	"contentfactory/internal/infra"
)

// NewLedger wires the PostgreSQL repositories over one executor.
func NewLedger(sql infra.SQLExecutor) domain.Ledger {
	return domain.Ledger{
		Sessions: NewSessionRepository(sql),
		Steps:    NewStepRepository(sql),
		Costs:    NewCostRepository(sql),
		Media:    NewMediaRepository(sql),
		Errors:   NewWorkflowErrorRepository(sql),
	}
}
