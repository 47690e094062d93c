package followup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/showroom/crm"
	"github.com/GoCodeAlone/showroom/events"
	"github.com/GoCodeAlone/showroom/message"
	"github.com/GoCodeAlone/showroom/plan"
	"github.com/GoCodeAlone/showroom/task"
)

const (
	defaultWorkers     = 4
	defaultCallTimeout = 30 * time.Second
)

// Directory reads the client records the engine works from.
type Directory interface {
	ListActiveClients(ctx context.Context) ([]crm.Client, error)
	ListSales(ctx context.Context, clientID string) ([]crm.Sale, error)
	// LatestRoomSketch returns nil when the client has no sketch.
	LatestRoomSketch(ctx context.Context, clientID string) (*crm.RoomSketch, error)
}

// Ledger is the task store as seen by the engine.
type Ledger interface {
	DueDateLookup
	CreateIfNoneDue(ctx context.Context, t *task.Task) (bool, error)
}

// Messenger writes the message attached to a task.
type Messenger interface {
	Compose(ctx context.Context, req message.Request) (string, error)
}

// Publisher receives engine events.
type Publisher interface {
	Publish(ctx context.Context, ev *events.Event) error
}

// Options configures a Generator. Zero values select the defaults.
type Options struct {
	Plans       plan.Plans    // default plan.Default()
	Style       message.Style // default message.DefaultStyle
	Workers     int           // default 4
	CallTimeout time.Duration // per persistence or message call; default 30s

	// AllowMissingMessage emits a task without a message when composing
	// fails, instead of failing the client.
	AllowMissingMessage bool

	Location *time.Location   // calendar used to decide "today"; default time.Local
	Now      func() time.Time // default time.Now
	Logger   *zap.Logger
	Events   Publisher
}

// ClientFailure records why a client was skipped.
type ClientFailure struct {
	ClientID string
	Err      error
}

// Report summarises one batch.
type Report struct {
	Date         civil.Date
	Clients      int
	Created      int
	Duplicates   int
	SkippedSales int
	Failures     []ClientFailure
	Tasks        []task.Task
}

// Generator runs the daily follow-up batch.
type Generator struct {
	dir    Directory
	ledger Ledger
	msg    Messenger
	guard  Guard
	opts   Options
	logger *zap.Logger

	runMu sync.Mutex
}

// NewGenerator returns a Generator over the given collaborators.
func NewGenerator(dir Directory, ledger Ledger, msg Messenger, opts Options) *Generator {
	if opts.Plans == nil {
		opts.Plans = plan.Default()
	}
	if opts.Style == "" {
		opts.Style = message.DefaultStyle
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		dir:    dir,
		ledger: ledger,
		msg:    msg,
		guard:  Guard{Tasks: ledger},
		opts:   opts,
		logger: logger,
	}
}

// Today returns the current calendar date in the generator's location.
func (g *Generator) Today() civil.Date {
	return civil.DateOf(g.opts.Now().In(g.opts.Location))
}

// Run processes every active client for today.
func (g *Generator) Run(ctx context.Context) (*Report, error) {
	return g.RunOn(ctx, g.Today())
}

// clientResult is the outcome of one client.
type clientResult struct {
	tasks      []task.Task
	duplicates int
	skipped    int
	err        error
}

// RunOn processes every active client as if today were the given date. A
// failing client is recorded in the report and does not stop the batch; an
// error is returned only when the client list cannot be read or ctx ends.
// Overlapping calls run one after the other.
func (g *Generator) RunOn(ctx context.Context, today civil.Date) (*Report, error) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	started := time.Now()
	report := &Report{Date: today}

	lctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	clients, err := g.dir.ListActiveClients(lctx)
	cancel()
	if err != nil {
		return report, fmt.Errorf("list active clients: %w", err)
	}
	report.Clients = len(clients)
	g.logger.Info("follow-up run started",
		zap.Stringer("date", today),
		zap.Int("clients", len(clients)),
		zap.Int("workers", g.opts.Workers),
	)

	results := make([]clientResult, len(clients))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Workers)
	for i := range clients {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = g.processClient(egCtx, clients[i], today)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for i, res := range results {
		report.Tasks = append(report.Tasks, res.tasks...)
		report.Created += len(res.tasks)
		report.Duplicates += res.duplicates
		report.SkippedSales += res.skipped
		if res.err != nil {
			report.Failures = append(report.Failures, ClientFailure{ClientID: clients[i].ID, Err: res.err})
		}
	}

	g.logger.Info("follow-up run finished",
		zap.Stringer("date", today),
		zap.Int("clients", report.Clients),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("skipped_sales", report.SkippedSales),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("elapsed", time.Since(started)),
	)
	g.publish(ctx, &events.Event{
		Topic: events.TopicRunFinished,
		Run: &events.RunSummary{
			Date:         today,
			Clients:      report.Clients,
			Created:      report.Created,
			Duplicates:   report.Duplicates,
			SkippedSales: report.SkippedSales,
			Failures:     len(report.Failures),
		},
	})
	return report, nil
}

// processClient runs classification, matching, deduplication, messaging and
// emission for one client.
func (g *Generator) processClient(ctx context.Context, c crm.Client, today civil.Date) (res clientResult) {
	log := g.logger.With(zap.String("client_id", c.ID))
	defer func() {
		if res.err != nil {
			log.Error("client follow-up failed", zap.Error(res.err))
			g.publish(ctx, &events.Event{
				Topic:    events.TopicClientFailed,
				ClientID: c.ID,
				Error:    res.err.Error(),
			})
		}
	}()

	var sales []crm.Sale
	err := g.call(ctx, func(ctx context.Context) (err error) {
		sales, err = g.dir.ListSales(ctx, c.ID)
		return err
	})
	if err != nil {
		res.err = fmt.Errorf("list sales: %w", err)
		return res
	}
	sales = localSales(sales, g.opts.Location)

	_, bad := splitSales(sales)
	for _, s := range bad {
		log.Warn("skipping sale with malformed date", zap.String("sale_id", s.ID), zap.String("date", s.Date))
	}

	seg := Classify(c, sales, today)
	cands, skipped := Candidates(c, sales, seg, g.opts.Plans, today)
	res.skipped = skipped
	log = log.With(zap.Stringer("segment", seg))
	if len(cands) == 0 {
		return res
	}

	var handled bool
	err = g.call(ctx, func(ctx context.Context) (err error) {
		handled, err = g.guard.AlreadyHandled(ctx, c.ID, today)
		return err
	})
	if err != nil {
		res.err = err
		return res
	}
	if handled {
		log.Debug("client already has a task today", zap.Int("candidates", len(cands)))
		res.duplicates = len(cands)
		return res
	}

	var sketch *crm.RoomSketch
	err = g.call(ctx, func(ctx context.Context) (err error) {
		sketch, err = g.dir.LatestRoomSketch(ctx, c.ID)
		return err
	})
	if err != nil {
		res.err = fmt.Errorf("latest room sketch: %w", err)
		return res
	}
	req := message.Request{Segment: seg, Style: g.opts.Style, Client: c, Room: message.RoomFrom(sketch)}

	// One task per client per day: the first candidate wins and the rest are
	// duplicates of it.
	cand := cands[0]
	res.duplicates = len(cands) - 1

	var text string
	err = g.call(ctx, func(ctx context.Context) (err error) {
		text, err = g.msg.Compose(ctx, req)
		return err
	})
	if err != nil {
		if !g.opts.AllowMissingMessage {
			res.err = fmt.Errorf("compose message: %w", err)
			return res
		}
		log.Warn("emitting task without a message", zap.Error(err))
	}

	t := &task.Task{
		ClientID:    c.ID,
		SaleID:      cand.SaleID,
		Description: cand.Description,
		DueDate:     today,
		Message:     text,
	}
	var created bool
	err = g.call(ctx, func(ctx context.Context) (err error) {
		created, err = g.ledger.CreateIfNoneDue(ctx, t)
		return err
	})
	if err != nil {
		res.err = fmt.Errorf("create task: %w", err)
		return res
	}
	if !created {
		res.duplicates++
		log.Debug("task already emitted by a concurrent run")
		return res
	}

	res.tasks = append(res.tasks, *t)
	log.Info("follow-up task created",
		zap.String("task_id", t.ID),
		zap.String("sale_id", t.SaleID),
		zap.Int("elapsed_days", cand.DayOffset),
		zap.String("description", t.Description),
	)
	g.publish(ctx, &events.Event{Topic: events.TopicTaskCreated, ClientID: c.ID, Task: t})
	return res
}

// call runs fn with the per-call timeout.
func (g *Generator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (g *Generator) publish(ctx context.Context, ev *events.Event) {
	if g.opts.Events == nil {
		return
	}
	if err := g.opts.Events.Publish(ctx, ev); err != nil {
		g.logger.Warn("event subscriber failed",
			zap.String("topic", string(ev.Topic)),
			zap.String("client_id", ev.ClientID),
			zap.Error(err),
		)
	}
}
