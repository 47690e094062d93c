package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL,
	sale_id      TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL,
	description  TEXT NOT NULL,
	due_date     TEXT NOT NULL,
	completed    INTEGER NOT NULL DEFAULT 0,
	message      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_client_due ON tasks(client_id, due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_open_due ON tasks(completed, due_date);
`

const columns = `id, client_id, sale_id, title, description, due_date, completed, message, created_at, completed_at`

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database and ensures the tasks table exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create task schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// prepare validates t and fills in ID, Title and CreatedAt.
func prepare(t *Task) error {
	if t.ClientID == "" {
		return fmt.Errorf("task has no client")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("task has no description")
	}
	if t.DueDate == (civil.Date{}) || !t.DueDate.IsValid() {
		return fmt.Errorf("task has invalid due date %v", t.DueDate)
	}
	if t.Title == "" {
		t.Title = TitleFor(t.Description)
	}
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	return nil
}

func (t *Task) values() []any {
	return []any{
		t.ID, t.ClientID, t.SaleID, t.Title, t.Description, t.DueDate.String(),
		t.Completed, t.Message, t.CreatedAt, nullTime(t.CompletedAt),
	}
}

// Create persists a new task and sets its ID, Title (when empty) and CreatedAt.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) (string, error) {
	if err := prepare(t); err != nil {
		return "", err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+columns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`, t.values()...)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// CreateIfNoneDue inserts t unless the client already has a task due that day.
func (s *SQLiteStore) CreateIfNoneDue(ctx context.Context, t *Task) (bool, error) {
	if err := prepare(t); err != nil {
		return false, err
	}
	args := append(t.values(), t.ClientID, t.DueDate.String())
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+columns+`)
		SELECT ?,?,?,?,?,?,?,?,?,?
		WHERE NOT EXISTS (SELECT 1 FROM tasks WHERE client_id=? AND due_date=?)`, args...)
	if err != nil {
		return false, fmt.Errorf("insert task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		t.ID = ""
		return false, nil
	}
	return true, nil
}

// LatestDueDate returns the latest due date among the client's tasks.
func (s *SQLiteStore) LatestDueDate(ctx context.Context, clientID string) (civil.Date, bool, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(due_date) FROM tasks WHERE client_id=?`, clientID).Scan(&latest)
	if err != nil {
		return civil.Date{}, false, fmt.Errorf("latest due date for %s: %w", clientID, err)
	}
	if !latest.Valid || latest.String == "" {
		return civil.Date{}, false, nil
	}
	d, err := civil.ParseDate(latest.String)
	if err != nil {
		return civil.Date{}, false, fmt.Errorf("latest due date for %s: %w", clientID, err)
	}
	return d, true, nil
}

// HasTaskDueOn reports whether the client has any task due on day, whatever
// other dates its tasks carry.
func (s *SQLiteStore) HasTaskDueOn(ctx context.Context, clientID string, day civil.Date) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasks WHERE client_id=? AND due_date=?)`,
		clientID, day.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("task due on %s for %s: %w", day, clientID, err)
	}
	return exists, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// List returns tasks matching the filter, earliest due date first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT " + columns + " FROM tasks WHERE 1=1")
	args := []any{}

	if filter.ClientID != "" {
		q.WriteString(" AND client_id=?")
		args = append(args, filter.ClientID)
	}
	if filter.DueDate != (civil.Date{}) {
		q.WriteString(" AND due_date=?")
		args = append(args, filter.DueDate.String())
	}
	if filter.DueBefore != (civil.Date{}) {
		q.WriteString(" AND due_date<?")
		args = append(args, filter.DueBefore.String())
	}
	if filter.Completed != nil {
		q.WriteString(" AND completed=?")
		args = append(args, *filter.Completed)
	}
	q.WriteString(" ORDER BY due_date ASC, created_at ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Complete marks a task completed. Completing an already completed task keeps
// the original completion time.
func (s *SQLiteStore) Complete(ctx context.Context, id string, at time.Time) (*Task, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET completed=1, completed_at=COALESCE(completed_at, ?) WHERE id=?`,
		at.UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var due string
	var completedAt sql.NullTime

	err := s.Scan(
		&t.ID, &t.ClientID, &t.SaleID, &t.Title, &t.Description, &due,
		&t.Completed, &t.Message, &t.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.DueDate, err = civil.ParseDate(due)
	if err != nil {
		return nil, fmt.Errorf("task %s due date: %w", t.ID, err)
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
