// Package api implements the REST handlers of the showroom server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/events"
	"github.com/GoCodeAlone/showroom/followup"
	"github.com/GoCodeAlone/showroom/runlog"
	"github.com/GoCodeAlone/showroom/task"
)

// TaskReader is the read side of the task store.
type TaskReader interface {
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, filter task.Filter) ([]*task.Task, error)
}

// Completer marks a task done and records the contact on its client.
type Completer func(ctx context.Context, id string, at time.Time) (*task.Task, error)

// RunHistory lists recorded batches.
type RunHistory interface {
	List(ctx context.Context, limit int) ([]*runlog.Record, error)
	LastCompleted(ctx context.Context) (*runlog.Record, error)
}

// Trigger starts a batch for a date.
type Trigger interface {
	RunFor(ctx context.Context, day civil.Date, trigger runlog.Trigger, force bool) (*followup.Report, bool, error)
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Tasks    TaskReader
	Complete Completer
	Runs     RunHistory
	Trigger  Trigger
	Bus      events.Bus
	Today    func() civil.Date
	Logger   *zap.Logger
	Version  string
	StartAt  time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("POST /api/tasks/{id}/complete", h.completeTask)

	mux.HandleFunc("GET /api/runs", h.listRuns)
	mux.HandleFunc("POST /api/runs", h.triggerRun)

	mux.HandleFunc("GET /api/events", h.listEvents)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handlers) today() civil.Date {
	if h.Today == nil {
		return civil.DateOf(time.Now())
	}
	return h.Today()
}

// --- Task handlers ---

// listTasks defaults to the open tasks due today. ?open and ?overdue take
// precedence over ?date.
func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f task.Filter
	switch {
	case q.Get("open") == "true":
		f = task.Open()
	case q.Get("overdue") == "true":
		f = task.Overdue(h.today())
	case q.Get("date") != "":
		d, err := civil.ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
			return
		}
		f = task.DueOn(d)
	default:
		f = task.DueOn(h.today())
	}
	f.ClientID = q.Get("client")
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Offset = n
		}
	}

	tasks, err := h.Tasks.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) completeTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Complete(r.Context(), r.PathValue("id"), time.Now())
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- Run handlers ---

func (h *Handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	runs, err := h.Runs.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*runlog.Record{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// failureBody is the JSON form of a followup.ClientFailure.
type failureBody struct {
	ClientID string `json:"client_id"`
	Error    string `json:"error"`
}

// reportBody is the JSON form of a followup.Report.
type reportBody struct {
	Date         civil.Date    `json:"date"`
	Clients      int           `json:"clients"`
	Created      int           `json:"created"`
	Duplicates   int           `json:"duplicates"`
	SkippedSales int           `json:"skipped_sales"`
	Failures     []failureBody `json:"failures"`
	Tasks        []task.Task   `json:"tasks"`
}

type runResponse struct {
	Ran    bool        `json:"ran"`
	Report *reportBody `json:"report,omitempty"`
}

func newReportBody(rep *followup.Report) *reportBody {
	if rep == nil {
		return nil
	}
	body := &reportBody{
		Date:         rep.Date,
		Clients:      rep.Clients,
		Created:      rep.Created,
		Duplicates:   rep.Duplicates,
		SkippedSales: rep.SkippedSales,
		Failures:     make([]failureBody, 0, len(rep.Failures)),
		Tasks:        rep.Tasks,
	}
	for _, f := range rep.Failures {
		body.Failures = append(body.Failures, failureBody{ClientID: f.ClientID, Error: f.Err.Error()})
	}
	if body.Tasks == nil {
		body.Tasks = []task.Task{}
	}
	return body
}

// triggerRun runs the batch for ?date (default today). A date that already
// has a completed run is skipped unless ?force=true.
func (h *Handlers) triggerRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day := h.today()
	if v := q.Get("date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
			return
		}
		day = d
	}
	force := q.Get("force") == "true"

	rep, ran, err := h.Trigger.RunFor(r.Context(), day, runlog.TriggerManual, force)
	if err != nil {
		h.logger().Error("api run failed", zap.Stringer("date", day), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Ran: ran, Report: newReportBody(rep)})
}

// --- Event handlers ---

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topic := events.TopicAll
	if t := q.Get("topic"); t != "" {
		topic = events.Topic(t)
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var evs []*events.Event
	if h.Bus != nil {
		evs = h.Bus.History(topic, limit)
	}
	if evs == nil {
		evs = []*events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": h.Version,
		"today":   h.today().String(),
	}
	if !h.StartAt.IsZero() {
		body["uptime"] = time.Since(h.StartAt).Round(time.Second).String()
	}
	if h.Runs != nil {
		last, err := h.Runs.LastCompleted(r.Context())
		if err != nil {
			h.logger().Warn("status: last run", zap.Error(err))
		} else if last != nil {
			body["last_run"] = last
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
