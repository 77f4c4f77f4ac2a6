package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"cnjp_news/internal/model"
	"cnjp_news/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AcquireLock takes the lock for job on behalf of owner. A lock older than
// ttl is considered abandoned by a killed run and is taken over.
// It returns ErrLocked if a live lock is held by someone else.
func (s *SQLite) AcquireLock(ctx context.Context, job, owner string, ttl time.Duration) error {
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if ttl > 0 {
		cutoff := now.Add(-ttl).Format(timeLayout)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM run_locks WHERE job = ? AND acquired_at < ?`, job, cutoff,
		); err != nil {
			return fmt.Errorf("expire stale lock: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO run_locks (job, owner, acquired_at) VALUES (?, ?, ?)
		 ON CONFLICT(job) DO NOTHING`,
		job, owner, now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrLocked
	}
	return tx.Commit()
}

// ReleaseLock drops the lock for job if owner holds it.
func (s *SQLite) ReleaseLock(ctx context.Context, job, owner string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM run_locks WHERE job = ? AND owner = ?`, job, owner)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// StartRun inserts a run, assigning an ID and start time when unset.
func (s *SQLite) StartRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now().UTC().Truncate(time.Second)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, job, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Job, run.StartedAt.UTC().Format(timeLayout), string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (s *SQLite) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt == nil {
		now := s.now().UTC().Truncate(time.Second)
		run.FinishedAt = &now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, fetched = ?, added = ?, home_count = ?, error = ?
		 WHERE id = ?`,
		run.FinishedAt.UTC().Format(timeLayout), string(run.Status),
		run.Fetched, run.Added, run.HomeCount, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run: %w", sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs of job, newest first.
func (s *SQLite) ListRuns(ctx context.Context, job string, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job, started_at, finished_at, status, fetched, added, home_count, error
		 FROM runs WHERE job = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`, job, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (model.Run, error) {
	var r model.Run
	var started string
	var finished sql.NullString
	var status string
	err := row.Scan(&r.ID, &r.Job, &started, &finished, &status, &r.Fetched, &r.Added, &r.HomeCount, &r.Error)
	if err != nil {
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.Status = model.RunStatus(status)
	r.StartedAt, _ = time.Parse(timeLayout, started)
	if finished.Valid {
		t, _ := time.Parse(timeLayout, finished.String)
		r.FinishedAt = &t
	}
	return r, nil
}
