package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"contentfactory/internal/domain"
	"contentfactory/internal/infra"
	"contentfactory/internal/sqlinline"
)

// WorkflowErrorRepositoryPG implements domain.WorkflowErrorRepository.
type WorkflowErrorRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewWorkflowErrorRepository(sql infra.SQLExecutor) *WorkflowErrorRepositoryPG {
	return &WorkflowErrorRepositoryPG{sql: sql}
}

func (r *WorkflowErrorRepositoryPG) Append(ctx context.Context, record domain.WorkflowError) (*domain.WorkflowError, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertWorkflowError,
		record.SessionID,
		record.WorkflowName,
		record.NodeName,
		record.ErrorMessage,
		record.ErrorStack,
	)
	out, err := scanWorkflowError(row)
	if err != nil {
		return nil, classify("append workflow error", err)
	}
	return out, nil
}

func (r *WorkflowErrorRepositoryPG) List(ctx context.Context, filter domain.ErrorFilter) ([]domain.WorkflowError, int, error) {
	f := filter.Normalize()
	workflow := nullIfEmpty(f.Workflow)

	var total int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountWorkflowErrors, workflow).Scan(&total); err != nil {
		return nil, 0, classify("count workflow errors", err)
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListWorkflowErrors, workflow, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, classify("list workflow errors", err)
	}
	defer rows.Close()
	records := []domain.WorkflowError{}
	for rows.Next() {
		rec, err := scanWorkflowError(rows)
		if err != nil {
			return nil, 0, classify("scan workflow error", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list workflow errors", err)
	}
	return records, total, nil
}

func scanWorkflowError(row pgx.Row) (*domain.WorkflowError, error) {
	var e domain.WorkflowError
	if err := row.Scan(&e.ID, &e.SessionID, &e.WorkflowName, &e.NodeName, &e.ErrorMessage, &e.ErrorStack, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

var _ domain.WorkflowErrorRepository = (*WorkflowErrorRepositoryPG)(nil)
