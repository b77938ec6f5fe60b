package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"contentfactory/internal/domain"
	"contentfactory/internal/infra"
	"contentfactory/internal/sqlinline"
)

// StepRepositoryPG implements domain.StepRepository.
type StepRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewStepRepository creates a step repository backed by PostgreSQL.
func NewStepRepository(sql infra.SQLExecutor) *StepRepositoryPG {
	return &StepRepositoryPG{sql: sql}
}

// Upsert applies a step report in one statement.
func (r *StepRepositoryPG) Upsert(ctx context.Context, update domain.StepUpdate, effects domain.StepEffects) (*domain.Step, error) {
	var status any
	if effects.Status != "" {
		status = string(effects.Status)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpsertStep,
		update.SessionID,
		update.StepName,
		update.StepOrder,
		status,
		update.InputData.Bytes(),
		update.OutputData.Bytes(),
		update.AIModel,
		update.TokensUsed,
		update.DurationMs,
		effects.MirrorCurrentStep,
	)
	step, err := scanStep(row)
	if err != nil {
		return nil, classify("upsert step", err)
	}
	return step, nil
}

// ListBySession returns the steps of a session in display order.
func (r *StepRepositoryPG) ListBySession(ctx context.Context, sessionID int64) ([]domain.Step, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStepsBySession, sessionID)
	if err != nil {
		return nil, classify("list steps", err)
	}
	defer rows.Close()
	steps := []domain.Step{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, classify("scan step", err)
		}
		steps = append(steps, *step)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list steps", err)
	}
	return steps, nil
}

func scanStep(row pgx.Row) (*domain.Step, error) {
	var s domain.Step
	var status string
	var input, output []byte
	if err := row.Scan(
		&s.ID,
		&s.SessionID,
		&s.StepName,
		&s.StepOrder,
		&status,
		&input,
		&output,
		&s.AIModel,
		&s.TokensUsed,
		&s.DurationMs,
		&s.StartedAt,
		&s.CompletedAt,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = domain.StepStatus(status)
	s.InputData = domain.Document(input)
	s.OutputData = domain.Document(output)
	return &s, nil
}

var _ domain.StepRepository = (*StepRepositoryPG)(nil)
