// Package schedule decides when the follow-up batch runs: at most one
// completed batch per calendar day, triggered by cron, at startup or by hand.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/followup"
	"github.com/GoCodeAlone/showroom/runlog"
)

// Runner executes one batch for a date.
type Runner interface {
	Today() civil.Date
	RunOn(ctx context.Context, today civil.Date) (*followup.Report, error)
}

// History records batches and answers whether today's already completed.
type History interface {
	CompletedOn(ctx context.Context, date civil.Date) (bool, error)
	Begin(ctx context.Context, date civil.Date, trigger runlog.Trigger) (*runlog.Record, error)
	Finish(ctx context.Context, rec *runlog.Record) error
}

// Gate runs the batch unless a completed run is already recorded for today.
type Gate struct {
	runner  Runner
	history History
	logger  *zap.Logger

	mu sync.Mutex
}

// NewGate creates a Gate. A nil logger discards output.
func NewGate(runner Runner, history History, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{runner: runner, history: history, logger: logger}
}

// RunIfDue runs today's batch when no completed run exists for today, or
// unconditionally when force is set. ran is false when the run was skipped.
func (g *Gate) RunIfDue(ctx context.Context, trigger runlog.Trigger, force bool) (report *followup.Report, ran bool, err error) {
	return g.RunFor(ctx, g.runner.Today(), trigger, force)
}

// RunFor is RunIfDue for an explicit date.
func (g *Gate) RunFor(ctx context.Context, today civil.Date, trigger runlog.Trigger, force bool) (report *followup.Report, ran bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	log := g.logger.With(zap.Stringer("date", today), zap.String("trigger", string(trigger)))

	if !force {
		done, err := g.history.CompletedOn(ctx, today)
		if err != nil {
			return nil, false, err
		}
		if done {
			log.Info("follow-up run already completed today, skipping")
			return nil, false, nil
		}
	}

	rec, err := g.history.Begin(ctx, today, trigger)
	if err != nil {
		return nil, false, fmt.Errorf("record run start: %w", err)
	}
	log = log.With(zap.String("run_id", rec.ID))

	report, runErr := g.runner.RunOn(ctx, today)
	if report != nil {
		rec.Clients = report.Clients
		rec.Created = report.Created
		rec.Duplicates = report.Duplicates
		rec.SkippedSales = report.SkippedSales
		rec.Failures = len(report.Failures)
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	// Record the outcome even when ctx was canceled mid-run.
	if err := g.history.Finish(context.WithoutCancel(ctx), rec); err != nil {
		log.Error("record run finish", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("record run finish: %w", err)
		}
	}
	if runErr != nil {
		log.Error("follow-up run failed", zap.Error(runErr))
		return report, true, runErr
	}
	return report, true, nil
}
