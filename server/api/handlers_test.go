package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/events"
	"github.com/GoCodeAlone/showroom/followup"
	"github.com/GoCodeAlone/showroom/runlog"
	"github.com/GoCodeAlone/showroom/server/api"
	"github.com/GoCodeAlone/showroom/task"
)

// --- Test doubles ---

var today = civil.Date{Year: 2024, Month: 3, Day: 10}

type fakeTaskStore struct {
	tasks   map[string]*task.Task
	filters []task.Filter
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string]*task.Task{
		"task-1": {ID: "task-1", ClientID: "c1", Description: "Send thank-you text", DueDate: today},
	}}
}

func (s *fakeTaskStore) Get(_ context.Context, id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, task.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTaskStore) List(_ context.Context, f task.Filter) ([]*task.Task, error) {
	s.filters = append(s.filters, f)
	var result []*task.Task
	for _, t := range s.tasks {
		cp := *t
		result = append(result, &cp)
	}
	return result, nil
}

func (s *fakeTaskStore) complete(ctx context.Context, id string, at time.Time) (*task.Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Completed = true
	t.CompletedAt = &at
	return t, nil
}

type fakeRuns struct {
	runs []*runlog.Record
}

func (f *fakeRuns) List(_ context.Context, _ int) ([]*runlog.Record, error) { return f.runs, nil }

func (f *fakeRuns) LastCompleted(_ context.Context) (*runlog.Record, error) {
	if len(f.runs) == 0 {
		return nil, nil
	}
	return f.runs[0], nil
}

type fakeTrigger struct {
	day   civil.Date
	force bool
	err   error
}

func (f *fakeTrigger) RunFor(_ context.Context, day civil.Date, _ runlog.Trigger, force bool) (*followup.Report, bool, error) {
	f.day, f.force = day, force
	if f.err != nil {
		return nil, false, f.err
	}
	return &followup.Report{
		Date:     day,
		Clients:  2,
		Created:  1,
		Failures: []followup.ClientFailure{{ClientID: "c2", Err: errors.New("provider down")}},
	}, true, nil
}

// --- Test helpers ---

type fixture struct {
	tasks   *fakeTaskStore
	trigger *fakeTrigger
	bus     *events.InMemoryBus
	mux     *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tasks:   newFakeTaskStore(),
		trigger: &fakeTrigger{},
		bus:     events.NewInMemoryBus(),
		mux:     http.NewServeMux(),
	}
	finished := time.Date(2024, 3, 9, 7, 0, 5, 0, time.UTC)
	h := &api.Handlers{
		Tasks:    f.tasks,
		Complete: f.tasks.complete,
		Runs: &fakeRuns{runs: []*runlog.Record{{
			ID: "run-1", RunDate: civil.Date{Year: 2024, Month: 3, Day: 9},
			Trigger: runlog.TriggerScheduled, FinishedAt: &finished, Created: 3,
		}}},
		Trigger: f.trigger,
		Bus:     f.bus,
		Today:   func() civil.Date { return today },
		Logger:  zap.NewNop(),
		Version: "test",
		StartAt: time.Now(),
	}
	h.RegisterRoutes(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// --- Tests ---

func TestListTasks_DefaultsToToday(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/tasks?client=c1&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	tasks := decode[[]task.Task](t, rec)
	if len(tasks) != 1 || tasks[0].ID != "task-1" {
		t.Errorf("tasks = %+v", tasks)
	}

	got := f.tasks.filters[0]
	if got.DueDate != today || got.ClientID != "c1" || got.Limit != 5 {
		t.Errorf("filter = %+v", got)
	}
	if got.Completed == nil || *got.Completed {
		t.Error("expected open tasks only")
	}
}

func TestListTasks_Filters(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/tasks?overdue=true")
	if got := f.tasks.filters[0]; got.DueBefore != today {
		t.Errorf("overdue filter = %+v", got)
	}

	f.do(t, http.MethodGet, "/api/tasks?date=2024-01-01")
	if got := f.tasks.filters[1]; got.DueDate != (civil.Date{Year: 2024, Month: 1, Day: 1}) {
		t.Errorf("date filter = %+v", got)
	}

	if rec := f.do(t, http.MethodGet, "/api/tasks?date=yesterday"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestGetTask(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/api/tasks/task-1"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/tasks/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

func TestCompleteTask(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/tasks/task-1/complete")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[task.Task](t, rec)
	if !got.Completed || got.CompletedAt == nil {
		t.Errorf("task not completed: %+v", got)
	}

	if rec := f.do(t, http.MethodPost, "/api/tasks/nope/complete"); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/runs?date=2024-03-01&force=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if f.trigger.day != (civil.Date{Year: 2024, Month: 3, Day: 1}) || !f.trigger.force {
		t.Errorf("trigger got day=%s force=%v", f.trigger.day, f.trigger.force)
	}

	var body struct {
		Ran    bool `json:"ran"`
		Report struct {
			Created  int `json:"created"`
			Failures []struct {
				ClientID string `json:"client_id"`
				Error    string `json:"error"`
			} `json:"failures"`
		} `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Ran || body.Report.Created != 1 {
		t.Errorf("body = %+v", body)
	}
	if len(body.Report.Failures) != 1 || body.Report.Failures[0].Error != "provider down" {
		t.Errorf("failures = %+v", body.Report.Failures)
	}
}

func TestTriggerRun_Defaults(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/runs")
	if f.trigger.day != today || f.trigger.force {
		t.Errorf("trigger got day=%s force=%v, want today unforced", f.trigger.day, f.trigger.force)
	}

	f.trigger.err = errors.New("database is locked")
	if rec := f.do(t, http.MethodPost, "/api/runs"); rec.Code != http.StatusInternalServerError {
		t.Errorf("failed run status = %d, want 500", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	runs := decode[[]runlog.Record](t, f.do(t, http.MethodGet, "/api/runs"))
	if len(runs) != 1 || runs[0].Created != 3 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.bus.Publish(ctx, &events.Event{Topic: events.TopicTaskCreated, ClientID: "c1"})
	_ = f.bus.Publish(ctx, &events.Event{Topic: events.TopicClientFailed, ClientID: "c2", Error: "boom"})

	all := decode[[]events.Event](t, f.do(t, http.MethodGet, "/api/events"))
	if len(all) != 2 {
		t.Fatalf("events = %d, want 2", len(all))
	}
	failed := decode[[]events.Event](t, f.do(t, http.MethodGet, "/api/events?topic=client.failed"))
	if len(failed) != 1 || failed[0].Error != "boom" {
		t.Errorf("filtered events = %+v", failed)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	body := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/status"))
	if body["status"] != "ok" || body["version"] != "test" || body["today"] != "2024-03-10" {
		t.Errorf("status body = %v", body)
	}
	if _, ok := body["last_run"]; !ok {
		t.Error("expected last_run in status")
	}
}
