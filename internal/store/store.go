// Package store keeps an audit trail of batch runs in Postgres or SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"almaconnector/internal/batch"
	"almaconnector/internal/config"
	"almaconnector/internal/constants"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/metrics"
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to Postgres when a host is configured and to the SQLite
// file otherwise.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	var driver, dsn string
	switch {
	case cfg.Postgres.Host != "":
		driver = constants.StoreDriverPostgres
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.DBName,
			cfg.Postgres.SSLMode,
		)
	case cfg.SQLite.Path != "":
		driver = constants.StoreDriverSQLite
		dsn = "file:" + cfg.SQLite.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	default:
		return nil, apperrors.ErrConfiguration.WithMessage("no run store configured")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(db, driver)
	if driver == constants.StoreDriverSQLite || cfg.RunMigrations {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements batch.Recorder.
func (s *Store) Record(ctx context.Context, res *batch.Result) error {
	return s.SaveRun(ctx, res)
}

func (s *Store) SaveRun(ctx context.Context, res *batch.Result) (err error) {
	start := time.Now()
	defer func() { s.observe("save_run", start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO batch_runs (id, kind, task, workflow, processed, failed, skipped, aborted, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		res.RunID, string(res.Kind), res.Task, res.Workflow,
		res.Processed, res.Failed, res.Skipped, res.Aborted,
		res.StartedAt.UTC(), res.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	insertFailure := s.rebind(`INSERT INTO batch_failures (run_id, item, code, message) VALUES (?, ?, ?, ?)`)
	for _, f := range res.Failures {
		if _, err = tx.ExecContext(ctx, insertFailure, res.RunID, f.Item, f.Code, f.Message); err != nil {
			return fmt.Errorf("failed to insert failure of run %s: %w", res.RunID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", res.RunID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (res *batch.Result, err error) {
	start := time.Now()
	defer func() { s.observe("get_run", start, err) }()

	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, kind, task, workflow, processed, failed, skipped, aborted, started_at, finished_at
		FROM batch_runs
		WHERE id = ?
	`), id)

	res, err = scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound.WithMessagef("run %s not found", id).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT item, code, message FROM batch_failures WHERE run_id = ? ORDER BY id
	`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f batch.Failure
		if err = rows.Scan(&f.Item, &f.Code, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		res.Failures = append(res.Failures, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	return res, nil
}

// ListRuns returns the newest runs first, without their failures.
func (s *Store) ListRuns(ctx context.Context, limit int) (runs []batch.Result, err error) {
	start := time.Now()
	defer func() { s.observe("list_runs", start, err) }()

	if limit <= 0 {
		limit = constants.DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, kind, task, workflow, processed, failed, skipped, aborted, started_at, finished_at
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		res, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *res)
	}
	return runs, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*batch.Result, error) {
	var (
		res               batch.Result
		kind              string
		started, finished timestamp
	)
	if err := row.Scan(
		&res.RunID, &kind, &res.Task, &res.Workflow,
		&res.Processed, &res.Failed, &res.Skipped, &res.Aborted,
		&started, &finished,
	); err != nil {
		return nil, err
	}
	res.Kind = batch.Kind(kind)
	res.StartedAt = started.Time
	res.FinishedAt = finished.Time
	return &res, nil
}

// timestamp scans both native time values and the text form SQLite may
// hand back.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != constants.StoreDriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveDatabaseQuery(s.driver, operation, status, time.Since(start))
}
