package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GoCodeAlone/showroom/followup"
	"github.com/GoCodeAlone/showroom/internal/sqlitedb"
	"github.com/GoCodeAlone/showroom/runlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var day = civil.Date{Year: 2024, Month: time.January, Day: 1}

type fakeRunner struct {
	mu    sync.Mutex
	today civil.Date
	runs  int
	err   error
	ran   chan struct{}
}

func (r *fakeRunner) Today() civil.Date { return r.today }

func (r *fakeRunner) RunOn(ctx context.Context, today civil.Date) (*followup.Report, error) {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	if r.ran != nil {
		defer func() { r.ran <- struct{}{} }()
	}
	if r.err != nil {
		return &followup.Report{Date: today}, r.err
	}
	return &followup.Report{Date: today, Clients: 3, Created: 2, Duplicates: 1}, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func newHistory(t *testing.T) *runlog.SQLiteStore {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h, err := runlog.NewSQLiteStore(db)
	require.NoError(t, err)
	return h
}

func TestGate_RunsOncePerDay(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{today: day}
	history := newHistory(t)
	gate := NewGate(runner, history, nil)

	report, ran, err := gate.RunIfDue(ctx, runlog.TriggerManual, false)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, report.Created)

	report, ran, err = gate.RunIfDue(ctx, runlog.TriggerScheduled, false)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, report)
	assert.Equal(t, 1, runner.count())

	last, err := history.LastCompleted(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, day, last.RunDate)
	assert.Equal(t, 3, last.Clients)
	assert.Equal(t, 2, last.Created)
	assert.Equal(t, 1, last.Duplicates)
}

func TestGate_Force(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{today: day}
	gate := NewGate(runner, newHistory(t), nil)

	_, _, err := gate.RunIfDue(ctx, runlog.TriggerManual, false)
	require.NoError(t, err)
	_, ran, err := gate.RunIfDue(ctx, runlog.TriggerManual, true)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, runner.count())
}

func TestGate_FailedRunIsRetried(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{today: day, err: errors.New("list active clients: disk I/O error")}
	history := newHistory(t)
	gate := NewGate(runner, history, nil)

	_, ran, err := gate.RunIfDue(ctx, runlog.TriggerScheduled, false)
	assert.True(t, ran)
	assert.ErrorContains(t, err, "disk I/O error")

	runs, err := history.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "disk I/O error")

	runner.err = nil
	_, ran, err = gate.RunIfDue(ctx, runlog.TriggerScheduled, false)
	require.NoError(t, err)
	assert.True(t, ran, "a failed batch does not block the next trigger")
}

func TestGate_NextDay(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{today: day}
	gate := NewGate(runner, newHistory(t), nil)

	_, _, err := gate.RunIfDue(ctx, runlog.TriggerScheduled, false)
	require.NoError(t, err)

	runner.today = day.AddDays(1)
	_, ran, err := gate.RunIfDue(ctx, runlog.TriggerScheduled, false)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler(NewGate(&fakeRunner{}, newHistory(t), nil), Config{Spec: "every tuesday"}, nil)
	assert.ErrorContains(t, err, "parse schedule")
}

func TestScheduler_RunOnStart(t *testing.T) {
	runner := &fakeRunner{today: day, ran: make(chan struct{}, 1)}
	history := newHistory(t)
	s, err := NewScheduler(NewGate(runner, history, nil), Config{
		Spec:       "0 7 * * *",
		Location:   time.UTC,
		RunOnStart: true,
	}, nil)
	require.NoError(t, err)

	s.Start(context.Background())
	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("startup run did not happen")
	}
	next := s.Next()
	s.Stop()

	assert.Equal(t, 1, runner.count())
	assert.Equal(t, 7, next.In(time.UTC).Hour())
	assert.Equal(t, 0, next.In(time.UTC).Minute())

	last, err := history.LastCompleted(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, runlog.TriggerStartup, last.Trigger)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s, err := NewScheduler(NewGate(&fakeRunner{}, newHistory(t), nil), Config{}, nil)
	require.NoError(t, err)
	s.Stop()
	assert.True(t, s.Next().IsZero())
}

func TestGate_RunFor(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{today: day}
	history := newHistory(t)
	gate := NewGate(runner, history, nil)

	past := day.AddDays(-3)
	report, ran, err := gate.RunFor(ctx, past, runlog.TriggerManual, false)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, past, report.Date)

	done, err := history.CompletedOn(ctx, past)
	require.NoError(t, err)
	assert.True(t, done)
	done, err = history.CompletedOn(ctx, day)
	require.NoError(t, err)
	assert.False(t, done)
}
