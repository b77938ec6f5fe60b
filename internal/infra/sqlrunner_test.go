package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type recordingPool struct {
	queries []string
}

func (p *recordingPool) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	p.queries = append(p.queries, query)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (p *recordingPool) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	p.queries = append(p.queries, query)
	return errorRow{err: pgx.ErrNoRows}
}

func (p *recordingPool) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	p.queries = append(p.queries, query)
	return nil, pgx.ErrNoRows
}

func TestExtractMarker(t *testing.T) {
	marker, body, err := extractMarker("\n--sql 9d70f052-9c97-4a7a-97e1-fed086961b37\nselect 1;\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marker != "9d70f052-9c97-4a7a-97e1-fed086961b37" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body = %q", body)
	}
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	pool := &recordingPool{}
	runner := NewSQLRunner(pool, zerolog.Nop())

	if _, err := runner.Exec(context.Background(), "update pipeline_sessions set status = 'error'"); err == nil {
		t.Fatalf("expected marker error")
	}
	if err := runner.QueryRow(context.Background(), "select 1").Scan(); err == nil {
		t.Fatalf("expected marker error from QueryRow")
	}
	if len(pool.queries) != 0 {
		t.Fatalf("unmarked queries reached the pool: %v", pool.queries)
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	pool := &recordingPool{}
	runner := NewSQLRunner(pool, zerolog.Nop())

	if _, err := runner.Exec(context.Background(), "--sql e773e05b-3013-4b5e-af39-fb2aa7b086e4\nselect 1;"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.queries) != 1 || pool.queries[0] != "select 1;" {
		t.Fatalf("unexpected forwarded queries: %#v", pool.queries)
	}
}

type delayedPool struct {
	recordingPool
	clock *fakeClock
	delay time.Duration
}

func (p *delayedPool) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	p.clock.t = p.clock.t.Add(p.delay)
	return p.recordingPool.Exec(ctx, query, args...)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestSQLRunnerLogsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	pool := &delayedPool{clock: clock, delay: 2 * time.Second}
	runner := NewSQLRunner(pool, zerolog.New(&buf))
	runner.now = clock.now

	if _, err := runner.Exec(context.Background(), "--sql e773e05b-3013-4b5e-af39-fb2aa7b086e4\nselect 1;"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry["slow"] != true || entry["sql"] != "e773e05b-3013-4b5e-af39-fb2aa7b086e4" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if entry["message"] != "sql[e773e05b-3013-4b5e-af39-fb2aa7b086e4] exec" {
		t.Fatalf("message = %v", entry["message"])
	}
}

func TestSQLRunnerNoRowsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	runner := NewSQLRunner(&recordingPool{}, zerolog.New(&buf).Level(zerolog.InfoLevel))
	err := runner.QueryRow(context.Background(), "--sql e773e05b-3013-4b5e-af39-fb2aa7b086e4\nselect 1;").Scan()
	if err != pgx.ErrNoRows {
		t.Fatalf("err = %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("no-rows logged above debug: %s", buf.String())
	}
}
