package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"contentfactory/internal/domain"
	"contentfactory/internal/infra"
	"contentfactory/internal/sqlinline"
)

// SessionRepositoryPG implements domain.SessionRepository.
type SessionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSessionRepository creates a session repository backed by PostgreSQL.
func NewSessionRepository(sql infra.SQLExecutor) *SessionRepositoryPG {
	return &SessionRepositoryPG{sql: sql}
}

// Create inserts a session in status created.
func (r *SessionRepositoryPG) Create(ctx context.Context, attrs domain.NewSession) (*domain.Session, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertSession,
		attrs.Source,
		attrs.ProductName,
		attrs.ProductArticles.Bytes(),
		attrs.ProductDescription,
		attrs.Marketplace,
		attrs.IdeaID,
		attrs.VoiceScriptID,
		attrs.VideoPromptID,
	)
	session, err := scanSession(row)
	if err != nil {
		return nil, classify("create session", err)
	}
	return session, nil
}

// Get fetches a session by id.
func (r *SessionRepositoryPG) Get(ctx context.Context, id int64) (*domain.Session, error) {
	session, err := scanSession(r.sql.QueryRow(ctx, sqlinline.QSelectSession, id))
	if err != nil {
		return nil, classify("get session", err)
	}
	return session, nil
}

// List returns one page of sessions and the total matching the filter.
func (r *SessionRepositoryPG) List(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, int, error) {
	f := filter.Normalize()
	args := []any{nullIfEmpty(f.Status), nullIfEmpty(f.Marketplace), nullIfEmpty(f.Source), nullIfEmpty(f.Search)}

	var total int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountSessions, args...).Scan(&total); err != nil {
		return nil, 0, classify("count sessions", err)
	}

	query := fmt.Sprintf(sqlinline.QListSessions, pq.QuoteIdentifier(f.Sort), f.Order)
	rows, err := r.sql.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, classify("list sessions", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0, f.Limit)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, classify("scan session", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list sessions", err)
	}
	return sessions, total, nil
}

// Transition moves a session into status when the guard allows it.
func (r *SessionRepositoryPG) Transition(ctx context.Context, id int64, status domain.SessionStatus, extra domain.TransitionExtra) (*domain.Session, error) {
	if !status.Valid() {
		_, err := domain.ParseSessionStatus(string(status))
		return nil, err
	}
	sources := domain.StatusStrings(domain.TransitionSources(status))
	row := r.sql.QueryRow(ctx, sqlinline.QTransitionSession, id, string(status), extra.CurrentStep, extra.ErrorMessage, sources)
	session, err := scanSession(row)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify("transition session", err)
	}
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, domain.CheckTransition(current.Status, status)
}

// ApplyUpdate applies a workflow status report unless the session is terminal.
func (r *SessionRepositoryPG) ApplyUpdate(ctx context.Context, update domain.SessionUpdate) (*domain.Session, bool, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QApplySessionUpdate,
		update.SessionID,
		string(update.Status),
		update.CurrentStep,
		update.ErrorMessage,
		update.ErrorStep,
		update.ResumeURL,
	)
	session, err := scanSession(row)
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, classify("apply session update", err)
	}
	current, getErr := r.Get(ctx, update.SessionID)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var status string
	var articles []byte
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.ChatID,
		&s.Source,
		&status,
		&s.CurrentStep,
		&s.ResumeURL,
		&s.ErrorMessage,
		&s.ErrorStep,
		&s.IdeaID,
		&s.VoiceScriptID,
		&s.VideoPromptID,
		&s.ProductName,
		&articles,
		&s.ProductDescription,
		&s.Marketplace,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = domain.SessionStatus(status)
	s.ProductArticles = domain.Document(articles)
	return &s, nil
}

var _ domain.SessionRepository = (*SessionRepositoryPG)(nil)
