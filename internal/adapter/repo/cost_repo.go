package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"contentfactory/internal/domain"
	"contentfactory/internal/infra"
	"contentfactory/internal/sqlinline"
)

// CostRepositoryPG implements domain.CostRepository.
type CostRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewCostRepository(sql infra.SQLExecutor) *CostRepositoryPG {
	return &CostRepositoryPG{sql: sql}
}

func (r *CostRepositoryPG) Append(ctx context.Context, entry domain.CostEntry) (*domain.CostEntry, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertCost,
		entry.SessionID,
		entry.StepName,
		entry.Provider,
		entry.Model,
		entry.PromptTokens,
		entry.CompletionTokens,
		entry.TotalTokens,
		entry.CostUSD,
		entry.DurationMs,
	)
	out, err := scanCost(row)
	if err != nil {
		return nil, classify("append cost", err)
	}
	return out, nil
}

func (r *CostRepositoryPG) ListBySession(ctx context.Context, sessionID int64) ([]domain.CostEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListCostsBySession, sessionID)
	if err != nil {
		return nil, classify("list costs", err)
	}
	defer rows.Close()
	entries := []domain.CostEntry{}
	for rows.Next() {
		entry, err := scanCost(rows)
		if err != nil {
			return nil, classify("scan cost", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list costs", err)
	}
	return entries, nil
}

func scanCost(row pgx.Row) (*domain.CostEntry, error) {
	var c domain.CostEntry
	if err := row.Scan(
		&c.ID,
		&c.SessionID,
		&c.StepName,
		&c.Provider,
		&c.Model,
		&c.PromptTokens,
		&c.CompletionTokens,
		&c.TotalTokens,
		&c.CostUSD,
		&c.DurationMs,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

var _ domain.CostRepository = (*CostRepositoryPG)(nil)
