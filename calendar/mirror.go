// Package calendar mirrors follow-up tasks into a Google Calendar as all-day
// events so salespeople see them next to their appointments.
package calendar

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/GoCodeAlone/showroom/events"
	"github.com/GoCodeAlone/showroom/task"
)

// Private extended properties set on mirrored events.
const (
	taskIDProperty   = "showroom_task_id"
	clientIDProperty = "showroom_client_id"
)

// Mirror inserts one calendar event per created task.
type Mirror struct {
	srv        *gcal.Service
	calendarID string
	logger     *zap.Logger
}

// NewMirror returns a Mirror writing to calendarID ("primary" when empty).
func NewMirror(srv *gcal.Service, calendarID string, logger *zap.Logger) *Mirror {
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{srv: srv, calendarID: calendarID, logger: logger}
}

// Subscribe attaches the mirror to task.created events on bus.
func (m *Mirror) Subscribe(bus events.Bus) (unsubscribe func()) {
	return bus.Subscribe(events.TopicTaskCreated, m.Handle)
}

// Handle mirrors the task carried by ev. Tasks that already have an event
// are left alone.
func (m *Mirror) Handle(ctx context.Context, ev *events.Event) error {
	if ev.Task == nil || ev.Task.ID == "" {
		return nil
	}
	t := ev.Task

	existing, err := m.findByTaskID(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("look up calendar event for task %s: %w", t.ID, err)
	}
	if existing != nil {
		return nil
	}

	created, err := m.srv.Events.Insert(m.calendarID, EventFor(t)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert calendar event for task %s: %w", t.ID, err)
	}
	m.logger.Debug("task mirrored to calendar",
		zap.String("task_id", t.ID),
		zap.String("event_id", created.Id),
	)
	return nil
}

func (m *Mirror) findByTaskID(ctx context.Context, taskID string) (*gcal.Event, error) {
	list, err := m.srv.Events.List(m.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", taskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(list.Items) > 0 {
		return list.Items[0], nil
	}
	return nil, nil
}

// EventFor converts a task into an all-day event on its due date.
func EventFor(t *task.Task) *gcal.Event {
	desc := t.Message
	if desc == "" {
		desc = t.Description
	}
	return &gcal.Event{
		Summary:     t.Description,
		Description: desc,
		Start:       &gcal.EventDateTime{Date: t.DueDate.String()},
		End:         &gcal.EventDateTime{Date: t.DueDate.AddDays(1).String()},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				taskIDProperty:   t.ID,
				clientIDProperty: t.ClientID,
			},
		},
	}
}
