package repo

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"contentfactory/internal/domain"
)

type sqlCall struct {
	query string
	args  []any
}

// stubSQL answers queries by their constant text.
type stubSQL struct {
	rows    map[string][]pgx.Row
	results map[string][][]any
	errs    map[string]error
	calls   []sqlCall
}

func newStubSQL() *stubSQL {
	return &stubSQL{
		rows:    make(map[string][]pgx.Row),
		results: make(map[string][][]any),
		errs:    make(map[string]error),
	}
}

func (s *stubSQL) onRow(query string, row pgx.Row) {
	s.rows[query] = append(s.rows[query], row)
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, sqlCall{query: query, args: args})
	return pgconn.CommandTag{}, nil
}

func (s *stubSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, sqlCall{query: query, args: args})
	queue := s.rows[query]
	if len(queue) == 0 {
		return valueRow{err: fmt.Errorf("unexpected query_row: %s", query)}
	}
	row := queue[0]
	s.rows[query] = queue[1:]
	return row
}

func (s *stubSQL) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, sqlCall{query: query, args: args})
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	for key, values := range s.results {
		if key == query {
			return &sliceRows{values: values}, nil
		}
	}
	return &sliceRows{}, nil
}

func (s *stubSQL) lastCall(query string) (sqlCall, bool) {
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].query == query {
			return s.calls[i], true
		}
	}
	return sqlCall{}, false
}

type valueRow struct {
	values []any
	err    error
}

func (r valueRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type sliceRows struct {
	values [][]any
	idx    int
}

func (r *sliceRows) Close()                                       {}
func (r *sliceRows) Err() error                                   { return nil }
func (r *sliceRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *sliceRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *sliceRows) RawValues() [][]byte                          { return nil }
func (r *sliceRows) Conn() *pgx.Conn                              { return nil }

func (r *sliceRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (r *sliceRows) Next() bool {
	if r.idx >= len(r.values) {
		return false
	}
	r.idx++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.values) {
		return pgx.ErrNoRows
	}
	return assign(dest, r.values[r.idx-1])
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: got %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %d: cannot assign %s to %s", i, v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

func sessionValues(s domain.Session) []any {
	return []any{
		s.ID, s.UserID, s.ChatID, s.Source, string(s.Status),
		s.CurrentStep, s.ResumeURL, s.ErrorMessage, s.ErrorStep,
		s.IdeaID, s.VoiceScriptID, s.VideoPromptID,
		s.ProductName, []byte(s.ProductArticles), s.ProductDescription, s.Marketplace,
		s.CreatedAt, s.UpdatedAt,
	}
}

func sessionRow(s domain.Session) pgx.Row {
	return valueRow{values: sessionValues(s)}
}

func stepRow(s domain.Step) pgx.Row {
	return valueRow{values: []any{
		s.ID, s.SessionID, s.StepName, s.StepOrder, string(s.Status),
		[]byte(s.InputData), []byte(s.OutputData), s.AIModel, s.TokensUsed, s.DurationMs,
		s.StartedAt, s.CompletedAt, s.CreatedAt,
	}}
}

var testTime = time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
