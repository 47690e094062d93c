// Package task defines the follow-up task model and its persistence.
package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ErrNotFound is returned when a task lookup matches no row.
var ErrNotFound = errors.New("task not found")

// titleRunes is the maximum length of a task title.
const titleRunes = 50

// Task is a dated follow-up reminder for a client.
type Task struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	SaleID      string     `json:"sale_id,omitempty"` // set for sale-level follow-ups
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     civil.Date `json:"due_date"`
	Completed   bool       `json:"completed"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TitleFor derives a task title from its description: the first 50 runes.
func TitleFor(description string) string {
	description = strings.TrimSpace(description)
	r := []rune(description)
	if len(r) <= titleRunes {
		return description
	}
	return string(r[:titleRunes])
}

// Store persists and retrieves tasks.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(ctx context.Context, t *Task) (string, error)

	// CreateIfNoneDue persists t only when the client has no task due on
	// t.DueDate. It reports whether the task was inserted. The check and the
	// insert are one statement, so concurrent callers cannot both succeed.
	CreateIfNoneDue(ctx context.Context, t *Task) (bool, error)

	// LatestDueDate returns the latest due date among the client's tasks.
	// ok is false when the client has no tasks.
	LatestDueDate(ctx context.Context, clientID string) (d civil.Date, ok bool, err error)

	// HasTaskDueOn reports whether the client has any task due on day.
	HasTaskDueOn(ctx context.Context, clientID string, day civil.Date) (bool, error)

	// Get retrieves a task by ID.
	Get(ctx context.Context, id string) (*Task, error)

	// List returns tasks matching the given filter.
	List(ctx context.Context, filter Filter) ([]*Task, error)

	// Complete marks a task completed at the given time and returns it.
	Complete(ctx context.Context, id string, at time.Time) (*Task, error)
}

// Filter controls which tasks are returned by List. Zero values are ignored.
type Filter struct {
	ClientID  string     `json:"client_id,omitempty"`
	DueDate   civil.Date `json:"due_date,omitempty"`
	DueBefore civil.Date `json:"due_before,omitempty"` // exclusive
	Completed *bool      `json:"completed,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// DueOn returns a filter for open tasks due on d.
func DueOn(d civil.Date) Filter {
	open := false
	return Filter{DueDate: d, Completed: &open}
}

// Overdue returns a filter for open tasks due before d.
func Overdue(d civil.Date) Filter {
	open := false
	return Filter{DueBefore: d, Completed: &open}
}

// Open returns a filter for every task not yet completed.
func Open() Filter {
	open := false
	return Filter{Completed: &open}
}
