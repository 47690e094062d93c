package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/calendar"
	"github.com/GoCodeAlone/showroom/config"
	"github.com/GoCodeAlone/showroom/crm"
	"github.com/GoCodeAlone/showroom/events"
	"github.com/GoCodeAlone/showroom/followup"
	"github.com/GoCodeAlone/showroom/internal/sqlitedb"
	"github.com/GoCodeAlone/showroom/internal/version"
	"github.com/GoCodeAlone/showroom/message"
	"github.com/GoCodeAlone/showroom/provider"
	"github.com/GoCodeAlone/showroom/runlog"
	"github.com/GoCodeAlone/showroom/schedule"
	"github.com/GoCodeAlone/showroom/server/api"
	"github.com/GoCodeAlone/showroom/task"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sql.DB
	clients *crm.SQLiteStore
	tasks   *task.SQLiteStore
	runs    *runlog.SQLiteStore
	bus     *events.InMemoryBus
	gen     *followup.Generator
	gate    *schedule.Gate
}

func newApp(ctx context.Context, c *config.Config, logger *zap.Logger) (*app, error) {
	db, err := sqlitedb.Open(c.DatabasePath())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: c, logger: logger, db: db, bus: events.NewInMemoryBus()}
	if err := a.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	var err error
	if a.clients, err = crm.NewSQLiteStore(a.db); err != nil {
		return err
	}
	if a.tasks, err = task.NewSQLiteStore(a.db); err != nil {
		return err
	}
	if a.runs, err = runlog.NewSQLiteStore(a.db); err != nil {
		return err
	}

	plans, err := a.cfg.FollowUpPlans()
	if err != nil {
		return err
	}
	style, err := message.ParseStyle(a.cfg.Engine.Style)
	if err != nil {
		return err
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	messenger, err := newMessenger(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}

	a.bus.Subscribe(events.TopicAll, func(_ context.Context, ev *events.Event) error {
		a.logger.Debug("event", zap.String("topic", string(ev.Topic)), zap.String("client_id", ev.ClientID))
		return nil
	})
	if a.cfg.Calendar.Enabled {
		srv, err := calendar.NewService(ctx, calendar.AuthConfig{
			CredentialsFile: a.cfg.Calendar.CredentialsFile,
			TokenFile:       a.cfg.Calendar.TokenFile,
		})
		if err != nil {
			return err
		}
		calendar.NewMirror(srv, a.cfg.Calendar.CalendarID, a.logger.Named("calendar")).Subscribe(a.bus)
	}

	a.gen = followup.NewGenerator(a.clients, a.tasks, messenger, followup.Options{
		Plans:               plans,
		Style:               style,
		Workers:             a.cfg.Engine.Workers,
		CallTimeout:         a.cfg.Engine.CallTimeout,
		AllowMissingMessage: !a.cfg.Engine.RequireMessage,
		Location:            loc,
		Logger:              a.logger.Named("followup"),
		Events:              a.bus,
	})
	a.gate = schedule.NewGate(a.gen, a.runs, a.logger.Named("schedule"))
	return nil
}

// newMessenger selects the built-in templates or a model-backed composer.
func newMessenger(ctx context.Context, c *config.Config, logger *zap.Logger) (followup.Messenger, error) {
	if c.Provider.Name == "" || c.Provider.Name == "template" {
		return message.TemplateComposer{Salesperson: c.Engine.Salesperson}, nil
	}
	p, err := provider.New(ctx, provider.Config{
		Name:       c.Provider.Name,
		Model:      c.Provider.Model,
		APIKey:     c.Provider.APIKey,
		BaseURL:    c.Provider.BaseURL,
		MaxTokens:  c.Provider.MaxTokens,
		MaxRetries: c.Provider.MaxRetries,
		Timeout:    c.Provider.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create message provider: %w", err)
	}
	return message.NewComposer(p,
		message.WithMaxTokens(c.Provider.MaxTokens),
		message.WithTemperature(c.Provider.Temperature),
		message.WithLogger(logger.Named("message")),
	), nil
}

// apiHandlers exposes the app to the HTTP server.
func (a *app) apiHandlers() *api.Handlers {
	return &api.Handlers{
		Tasks: a.tasks,
		Complete: func(ctx context.Context, id string, at time.Time) (*task.Task, error) {
			return followup.CompleteTask(ctx, a.tasks, a.clients, id, at)
		},
		Runs:    a.runs,
		Trigger: a.gate,
		Bus:     a.bus,
		Today:   a.gen.Today,
		Logger:  a.logger.Named("api"),
		Version: version.Version,
	}
}

func (a *app) Close() error {
	return a.db.Close()
}
