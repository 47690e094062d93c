package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/GoCodeAlone/showroom/task"
)

// TaskCompleter marks tasks done.
type TaskCompleter interface {
	Complete(ctx context.Context, id string, at time.Time) (*task.Task, error)
}

// ContactRecorder stamps a client's last contact time.
type ContactRecorder interface {
	TouchLastContact(ctx context.Context, clientID string, at time.Time) error
}

// CompleteTask marks the task done and records the contact on its client.
func CompleteTask(ctx context.Context, tasks TaskCompleter, contacts ContactRecorder, id string, at time.Time) (*task.Task, error) {
	t, err := tasks.Complete(ctx, id, at)
	if err != nil {
		return nil, err
	}
	if err := contacts.TouchLastContact(ctx, t.ClientID, at); err != nil {
		return t, fmt.Errorf("record contact for client %s: %w", t.ClientID, err)
	}
	return t, nil
}
