package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"remindline/internal/engine"
	"remindline/internal/hierarchy"
	"remindline/internal/notify"
)

// FromEngine wires a scheduler to the engine's store, graph, calendar and
// notifier so both share one clock and one set of texts.
func FromEngine(e engine.Engine, deliveryTimeout time.Duration) *Scheduler {
	lang := notify.LanguageRu
	if e.Config != nil && e.Config.Notifier.Language != "" {
		lang = e.Config.Notifier.Language
	}
	var graph Graph = e.Hierarchy
	return &Scheduler{
		Store:           e.Repo,
		Graph:           graph,
		Notifier:        e.Notifier,
		Texts:           e.Texts,
		Calendar:        e.Calendar,
		Language:        lang,
		DeliveryTimeout: deliveryTimeout,
		Log:             e.Log,
		Now:             e.Now,
	}
}

var _ Graph = hierarchy.Resolver{}

// Run ticks every interval until ctx is cancelled. The cron chain drops a tick
// while the previous one is still running.
func (s *Scheduler) Run(ctx context.Context, every time.Duration) error {
	if every < time.Second {
		return fmt.Errorf("scheduler interval %s is too short", every)
	}
	log := cronLogger{s.logger().Sugar()}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", every), func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	s.logger().Info("scheduler started", zap.Duration("every", every))
	s.Tick(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger().Info("scheduler stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
