package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLExecutor is the subset of *pgxpool.Pool the ledger repositories use.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// DefaultSlowQuery is the latency above which a statement is logged at warn.
const DefaultSlowQuery = 500 * time.Millisecond

// SQLRunner refuses statements without a --sql <uuid> marker and logs every
// statement by that marker. Scan time counts towards query_row latency.
type SQLRunner struct {
	pool   SQLExecutor
	logger zerolog.Logger
	slow   time.Duration
	now    func() time.Time
}

func NewSQLRunner(pool SQLExecutor, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{
		pool:   pool,
		logger: logger.With().Str("component", "sql").Logger(),
		slow:   DefaultSlowQuery,
		now:    time.Now,
	}
}

// WithSlowThreshold overrides DefaultSlowQuery. Zero disables slow logging.
func (r *SQLRunner) WithSlowThreshold(d time.Duration) *SQLRunner {
	r.slow = d
	return r
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := r.now()
	tag, err := r.pool.Exec(ctx, body, args...)
	r.done("exec", marker, start, err).Int64("rows", tag.RowsAffected()).Msg(label(marker, "exec"))
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, body, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &timedRow{runner: r, marker: marker, start: r.now(), row: r.pool.QueryRow(ctx, body, args...)}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := r.now()
	rows, err := r.pool.Query(ctx, body, args...)
	if err != nil {
		r.done("query", marker, start, err).Msg(label(marker, "query"))
		return nil, err
	}
	return &timedRows{Rows: rows, runner: r, marker: marker, start: start}, nil
}

// done picks the log level for a finished statement: error on failure, warn
// when slow, debug otherwise. pgx.ErrNoRows is an answer, not a failure.
func (r *SQLRunner) done(op, marker string, start time.Time, err error) *zerolog.Event {
	took := r.now().Sub(start)
	var ev *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		ev = r.logger.Error().Err(err)
	case r.slow > 0 && took >= r.slow:
		ev = r.logger.Warn().Bool("slow", true)
	default:
		ev = r.logger.Debug()
	}
	return ev.Str("sql", marker).Str("op", op).Dur("took", took)
}

func label(marker, op string) string {
	return "sql[" + marker + "] " + op
}

type timedRow struct {
	runner *SQLRunner
	marker string
	start  time.Time
	row    pgx.Row
}

func (t *timedRow) Scan(dest ...any) error {
	err := t.row.Scan(dest...)
	t.runner.done("query_row", t.marker, t.start, err).Msg(label(t.marker, "query_row"))
	return err
}

type timedRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
	closed bool
}

func (t *timedRows) Close() {
	t.Rows.Close()
	if t.closed {
		return
	}
	t.closed = true
	t.runner.done("query", t.marker, t.start, t.Rows.Err()).Msg(label(t.marker, "query"))
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	markerLine, body, _ := strings.Cut(trimmed, "\n")
	markerLine = strings.TrimSpace(markerLine)
	if !markerRegexp.MatchString(markerLine) {
		return "", "", errors.New("sql marker missing or invalid")
	}
	return strings.TrimPrefix(markerLine, "--sql "), strings.TrimSpace(body), nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
