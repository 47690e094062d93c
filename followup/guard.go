package followup

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
)

// DueDateLookup reports whether a client already has a task due on a day.
type DueDateLookup interface {
	HasTaskDueOn(ctx context.Context, clientID string, day civil.Date) (bool, error)
}

// Guard suppresses a second follow-up for a client on the same day.
type Guard struct {
	Tasks DueDateLookup
}

// AlreadyHandled reports whether the client already has a task due today.
// Tasks dated after today do not hide one due today.
func (g Guard) AlreadyHandled(ctx context.Context, clientID string, today civil.Date) (bool, error) {
	due, err := g.Tasks.HasTaskDueOn(ctx, clientID, today)
	if err != nil {
		return false, fmt.Errorf("check existing tasks: %w", err)
	}
	return due, nil
}
