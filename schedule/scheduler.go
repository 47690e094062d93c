package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/runlog"
)

// DefaultSpec runs the batch every morning at 07:00.
const DefaultSpec = "0 7 * * *"

// Config configures a Scheduler.
type Config struct {
	Spec       string         // standard five-field cron expression or descriptor
	Location   *time.Location // default time.Local
	RunOnStart bool           // also run once when Start is called
	Timeout    time.Duration  // per-batch limit; zero means none
}

// Scheduler fires the gate on a cron schedule.
type Scheduler struct {
	gate   *Gate
	cfg    Config
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
	started bool
}

// NewScheduler validates cfg.Spec and registers the daily job.
func NewScheduler(gate *Gate, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}

	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		gate:   gate,
		cfg:    cfg,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(cfg.Spec, func() { s.fire(runlog.TriggerScheduled) }); err != nil {
		return nil, fmt.Errorf("add schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins firing the schedule. Jobs run under ctx until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("spec", s.cfg.Spec),
		zap.String("location", s.cfg.Location.String()),
		zap.Time("next", s.Next()),
	)

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.fire(runlog.TriggerStartup)
		}()
	}
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Next returns the next scheduled fire time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) fire(trigger runlog.Trigger) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	report, ran, err := s.gate.RunIfDue(ctx, trigger, false)
	if err != nil {
		s.logger.Error("scheduled follow-up run failed", zap.String("trigger", string(trigger)), zap.Error(err))
		return
	}
	if ran {
		s.logger.Info("scheduled follow-up run done",
			zap.String("trigger", string(trigger)),
			zap.Int("created", report.Created),
			zap.Int("failures", len(report.Failures)),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
