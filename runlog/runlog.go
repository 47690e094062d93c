// Package runlog records each follow-up batch so the daily trigger can tell
// whether today's run already happened.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Trigger says what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerStartup   Trigger = "startup"
)

// Record is one batch run.
type Record struct {
	ID           string     `json:"id"`
	RunDate      civil.Date `json:"run_date"`
	Trigger      Trigger    `json:"trigger"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Clients      int        `json:"clients"`
	Created      int        `json:"created"`
	Duplicates   int        `json:"duplicates"`
	SkippedSales int        `json:"skipped_sales"`
	Failures     int        `json:"failures"`
	Error        string     `json:"error,omitempty"` // set when the batch itself failed
}

// Completed reports whether the run finished without a batch-level error.
func (r *Record) Completed() bool {
	return r.FinishedAt != nil && r.Error == ""
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	run_date      TEXT NOT NULL,
	trigger_kind  TEXT NOT NULL,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME,
	clients       INTEGER NOT NULL DEFAULT 0,
	created       INTEGER NOT NULL DEFAULT 0,
	duplicates    INTEGER NOT NULL DEFAULT 0,
	skipped_sales INTEGER NOT NULL DEFAULT 0,
	failures      INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(run_date);
`

const columns = `id, run_date, trigger_kind, started_at, finished_at, clients, created, duplicates, skipped_sales, failures, error`

// SQLiteStore persists run records.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database and ensures the runs table exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create runlog schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Begin records the start of a run for date.
func (s *SQLiteStore) Begin(ctx context.Context, date civil.Date, trigger Trigger) (*Record, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		RunDate:   date,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_date, trigger_kind, started_at) VALUES (?,?,?,?)`,
		rec.ID, rec.RunDate.String(), string(rec.Trigger), rec.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// Finish stores the outcome of rec and stamps FinishedAt.
func (s *SQLiteStore) Finish(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	rec.FinishedAt = &now
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at=?, clients=?, created=?, duplicates=?, skipped_sales=?, failures=?, error=?
		WHERE id=?`,
		now, rec.Clients, rec.Created, rec.Duplicates, rec.SkippedSales, rec.Failures, rec.Error, rec.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("run %s not found", rec.ID)
	}
	return nil
}

// CompletedOn reports whether a run for date finished without a batch error.
func (s *SQLiteStore) CompletedOn(ctx context.Context, date civil.Date) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE run_date=? AND finished_at IS NOT NULL AND error=''`,
		date.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check completed runs: %w", err)
	}
	return n > 0, nil
}

// LastCompleted returns the most recent completed run, or nil when there is none.
func (s *SQLiteStore) LastCompleted(ctx context.Context) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs
		WHERE finished_at IS NOT NULL AND error='' ORDER BY run_date DESC, started_at DESC LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// List returns the most recent runs, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var runDate, trigger string
	var finished sql.NullTime
	err := s.Scan(&rec.ID, &runDate, &trigger, &rec.StartedAt, &finished,
		&rec.Clients, &rec.Created, &rec.Duplicates, &rec.SkippedSales, &rec.Failures, &rec.Error)
	if err != nil {
		return nil, err
	}
	rec.Trigger = Trigger(trigger)
	if rec.RunDate, err = civil.ParseDate(runDate); err != nil {
		return nil, fmt.Errorf("run %s date: %w", rec.ID, err)
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return &rec, nil
}
