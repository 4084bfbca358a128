package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"remindline/internal/config"
	"remindline/internal/domain"
	"remindline/internal/engine/auth"
	"remindline/internal/events"
	"remindline/internal/hierarchy"
	"remindline/internal/metrics"
	"remindline/internal/notify"
	"remindline/internal/repo"
	"remindline/internal/timeparse"
	"remindline/internal/workcal"
)

type Engine struct {
	DB        *sqlx.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Parser    *timeparse.Parser
	Calendar  *workcal.Calendar
	Hierarchy hierarchy.Resolver
	Auth      auth.Service
	// Notifier and Texts are optional. When set, lifecycle changes are announced
	// to the people concerned after the change commits.
	Notifier notify.Notifier
	Texts    *notify.Texts
	Log      *zap.Logger
	Now      func() time.Time
}

func New(db *sqlx.DB, cfg *config.Config) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return Engine{}, err
	}
	cal, err := workcal.New(cfg.WorkWindow.StartHour, cfg.WorkWindow.EndHour, loc)
	if err != nil {
		return Engine{}, err
	}
	r := repo.Repo{DB: db}
	h := hierarchy.Resolver{Source: r, DeveloperID: cfg.Hierarchy.DeveloperID}
	return Engine{
		DB:        db,
		Repo:      r,
		Events:    events.Writer{},
		Config:    cfg,
		Parser:    timeparse.New(loc),
		Calendar:  cal,
		Hierarchy: h,
		Auth:      auth.Service{Hierarchy: h},
		Log:       zap.NewNop(),
		Now:       time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// calendar returns the work calendar on the engine clock.
func (e Engine) calendar() *workcal.Calendar {
	c := *e.Calendar
	c.Now = e.now
	return &c
}

func (e Engine) events() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e Engine) language() string {
	if e.Config != nil && e.Config.Notifier.Language != "" {
		return e.Config.Notifier.Language
	}
	return notify.LanguageRu
}

// withTx runs fn in a transaction and commits when it returns nil.
func (e Engine) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) appendEvent(ctx context.Context, tx *sqlx.Tx, taskID string, kind domain.EventKind, actorID string, meta events.Meta) error {
	if err := e.events().Append(ctx, tx, taskID, kind, actorID, meta); err != nil {
		return fmt.Errorf("append %s event: %w", kind, err)
	}
	metrics.TaskTransitions.WithLabelValues(string(kind)).Inc()
	return nil
}

// ParseDeadline exposes the engine's grammar and clock, mainly for the CLI.
func (e Engine) ParseDeadline(text string) (time.Time, error) {
	return e.Parser.Parse(text, e.now())
}

func recordDelivery(kind string, err error) {
	metrics.NotificationsSent.WithLabelValues(kind, metrics.Status(err)).Inc()
}
