package followup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/GoCodeAlone/showroom/crm"
	"github.com/GoCodeAlone/showroom/message"
	"github.com/GoCodeAlone/showroom/task"
)

type fakeDirectory struct {
	clients   []crm.Client
	sales     map[string][]crm.Sale
	sketches  map[string]*crm.RoomSketch
	salesErr  map[string]error
	sketchErr map[string]error
	listErr   error
}

func (d *fakeDirectory) ListActiveClients(context.Context) ([]crm.Client, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.clients, nil
}

func (d *fakeDirectory) ListSales(_ context.Context, id string) ([]crm.Sale, error) {
	if err := d.salesErr[id]; err != nil {
		return nil, err
	}
	return d.sales[id], nil
}

func (d *fakeDirectory) LatestRoomSketch(_ context.Context, id string) (*crm.RoomSketch, error) {
	if err := d.sketchErr[id]; err != nil {
		return nil, err
	}
	return d.sketches[id], nil
}

// memLedger is an in-memory task ledger with the same per-day guarantee as
// the SQLite store.
type memLedger struct {
	mu        sync.Mutex
	tasks     []task.Task
	lookupErr map[string]error
	createErr map[string]error
}

func (l *memLedger) HasTaskDueOn(_ context.Context, clientID string, day civil.Date) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.lookupErr[clientID]; err != nil {
		return false, err
	}
	for _, t := range l.tasks {
		if t.ClientID == clientID && t.DueDate == day {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) CreateIfNoneDue(_ context.Context, t *task.Task) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.createErr[t.ClientID]; err != nil {
		return false, err
	}
	for _, existing := range l.tasks {
		if existing.ClientID == t.ClientID && existing.DueDate == t.DueDate {
			return false, nil
		}
	}
	t.ID = fmt.Sprintf("task-%d", len(l.tasks)+1)
	t.Title = task.TitleFor(t.Description)
	t.CreatedAt = time.Now()
	l.tasks = append(l.tasks, *t)
	return true, nil
}

func (l *memLedger) all() []task.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]task.Task(nil), l.tasks...)
}

type fakeMessenger struct {
	mu       sync.Mutex
	fail     map[string]error
	requests []message.Request
}

func (m *fakeMessenger) Compose(_ context.Context, req message.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err := m.fail[req.Client.ID]; err != nil {
		return "", err
	}
	return "Hi " + req.Client.Name + "!", nil
}

func (m *fakeMessenger) calls() []message.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.Request(nil), m.requests...)
}

type completer struct{}

func (completer) Complete(_ context.Context, id string, at time.Time) (*task.Task, error) {
	return &task.Task{ID: id, ClientID: "c1", Completed: true, CompletedAt: &at}, nil
}

type contactLog struct {
	touched map[string]time.Time
	err     error
}

func (c *contactLog) TouchLastContact(_ context.Context, clientID string, at time.Time) error {
	if c.err != nil {
		return c.err
	}
	if c.touched == nil {
		c.touched = map[string]time.Time{}
	}
	c.touched[clientID] = at
	return nil
}
