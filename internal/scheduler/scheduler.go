// Package scheduler runs the periodic due-task scan: it decides who hears about
// which task and when each task is looked at again.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"remindline/internal/domain"
	"remindline/internal/hierarchy"
	"remindline/internal/metrics"
	"remindline/internal/notify"
	"remindline/internal/repo"
	"remindline/internal/workcal"
)

const (
	// ReachedWindow is how far either side of the deadline still counts as "the
	// deadline has come" rather than early or late.
	ReachedWindow = 60 * time.Second
	// OverdueAfter is the grace period before escalation starts.
	OverdueAfter   = 5 * time.Minute
	OverdueRepeat  = time.Hour
	minimumBackoff = time.Minute
)

// Store is the persistence the scheduler needs. repo.Repo implements it.
type Store interface {
	DueTasks(ctx context.Context, now time.Time) ([]repo.DueTask, error)
	UpdateReminder(ctx context.Context, u repo.ReminderUpdate) (bool, error)
}

// Graph hands out a hierarchy snapshot for one tick.
type Graph interface {
	Snapshot(ctx context.Context) (*hierarchy.Snapshot, error)
}

type Action string

const (
	ActionReached    Action = "reached"
	ActionOverdue    Action = "overdue"
	ActionReschedule Action = "reschedule"
)

// Classify decides what a due task needs at now.
func Classify(t domain.Task, now time.Time) Action {
	if t.Deadline == nil {
		return ActionReschedule
	}
	d := now.Sub(*t.Deadline)
	switch {
	case d > OverdueAfter:
		return ActionOverdue
	case d > -ReachedWindow && !remindedFor(t):
		return ActionReached
	}
	return ActionReschedule
}

// remindedFor reports whether a reminder already went out for the current deadline.
func remindedFor(t domain.Task) bool {
	return t.LastReminderAt != nil && !t.LastReminderAt.Before(t.Deadline.Add(-ReachedWindow))
}

type Scheduler struct {
	Store    Store
	Graph    Graph
	Notifier notify.Notifier
	Texts    *notify.Texts
	Calendar *workcal.Calendar
	Language string
	// DeliveryTimeout bounds every single Send/EditOrAppend call.
	DeliveryTimeout time.Duration
	Log             *zap.Logger
	Now             func() time.Time

	mu sync.Mutex
}

// TickResult summarizes one tick for logs, the CLI and the force-check endpoint.
type TickResult struct {
	At          time.Time `json:"at" format:"date-time"`
	Skipped     bool      `json:"skipped"`
	Due         int       `json:"due"`
	Reached     int       `json:"reached"`
	Overdue     int       `json:"overdue"`
	Rescheduled int       `json:"rescheduled"`
	Stale       int       `json:"stale"`
	Failed      int       `json:"failed"`
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Scheduler) calendar(now time.Time) *workcal.Calendar {
	c := *s.Calendar
	c.Now = func() time.Time { return now }
	return &c
}

// Tick processes every due task once. It never returns an error: failures are
// logged and counted per task. A tick that overlaps a running one is skipped.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	now := s.now()
	res := TickResult{At: now}
	if !s.mu.TryLock() {
		res.Skipped = true
		metrics.SchedulerTicks.WithLabelValues("skipped").Inc()
		s.logger().Warn("scheduler tick skipped, previous tick still running")
		return res
	}
	defer s.mu.Unlock()

	started := time.Now()
	defer func() { metrics.SchedulerTickDuration.Observe(time.Since(started).Seconds()) }()

	due, err := s.Store.DueTasks(ctx, now)
	if err != nil {
		metrics.SchedulerTicks.WithLabelValues("failed").Inc()
		s.logger().Error("load due tasks", zap.Error(err))
		return res
	}
	res.Due = len(due)
	if len(due) == 0 {
		metrics.SchedulerTicks.WithLabelValues("ran").Inc()
		return res
	}

	run := &tickRun{s: s, now: now, cal: s.calendar(now)}
	for _, d := range due {
		if ctx.Err() != nil {
			break
		}
		action, ok, err := run.process(ctx, d)
		switch {
		case err != nil:
			res.Failed++
			s.logger().Error("process task", zap.String("task_id", d.Task.ID), zap.Error(err))
			continue
		case !ok:
			res.Stale++
			metrics.SchedulerStaleUpdates.Inc()
			s.logger().Debug("task changed during tick", zap.String("task_id", d.Task.ID))
		}
		metrics.SchedulerTasks.WithLabelValues(string(action)).Inc()
		switch action {
		case ActionReached:
			res.Reached++
		case ActionOverdue:
			res.Overdue++
		case ActionReschedule:
			res.Rescheduled++
		}
	}
	metrics.SchedulerTicks.WithLabelValues("ran").Inc()
	s.logger().Info("scheduler tick",
		zap.Int("due", res.Due),
		zap.Int("reached", res.Reached),
		zap.Int("overdue", res.Overdue),
		zap.Int("rescheduled", res.Rescheduled),
		zap.Int("stale", res.Stale),
		zap.Int("failed", res.Failed),
	)
	return res
}

// tickRun carries per-tick state: the pinned instant and a lazily loaded graph.
type tickRun struct {
	s    *Scheduler
	now  time.Time
	cal  *workcal.Calendar
	snap *hierarchy.Snapshot
}

func (r *tickRun) graph(ctx context.Context) (*hierarchy.Snapshot, error) {
	if r.snap != nil {
		return r.snap, nil
	}
	snap, err := r.s.Graph.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.snap = snap
	return snap, nil
}

// process handles one task. ok is false when the conditional write lost to a
// concurrent change.
func (r *tickRun) process(ctx context.Context, d repo.DueTask) (action Action, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	task := d.Task
	action = Classify(task, r.now)
	upd := repo.ReminderUpdate{TaskID: task.ID, ExpectedNext: task.NextReminderAt, Now: r.now}

	switch action {
	case ActionReached:
		h := r.deliver(ctx, d.Owner, r.message(notify.KindDeadlineReached, d), "")
		upd.Next = task.Deadline.Add(OverdueAfter)
		upd.LastReminderAt = &r.now
		upd.MessageID = handleID(h)
	case ActionOverdue:
		var prev notify.Handle
		if task.LastReminderMsgID != nil {
			prev = notify.Handle(*task.LastReminderMsgID)
		}
		h := r.deliver(ctx, d.Owner, r.message(notify.KindOverdue, d), prev)
		if err := r.escalate(ctx, d); err != nil {
			r.s.logger().Warn("escalation skipped", zap.String("task_id", task.ID), zap.Error(err))
		}
		upd.Next = r.cal.ClampForward(r.now.Add(OverdueRepeat))
		upd.LastReminderAt = &r.now
		upd.MessageID = handleID(h)
	default:
		next := r.cal.NextReminderAfter(task.Deadline)
		if !next.After(r.now) {
			next = r.cal.ClampForward(r.now.Add(minimumBackoff))
		}
		upd.Next = next
	}
	ok, err = r.s.Store.UpdateReminder(ctx, upd)
	return action, ok, err
}

func (r *tickRun) message(kind string, d repo.DueTask) notify.Message {
	deadline := "-"
	if d.Task.Deadline != nil {
		deadline = r.cal.Local(*d.Task.Deadline)
	}
	return r.s.Texts.Build(r.s.Language, kind, d.Task.ID, notify.TaskView{
		Ref:         notify.ShortRef(d.Task.ID),
		Description: d.Task.Description,
		Deadline:    deadline,
		Owner:       d.Owner.FullName,
		Delay:       int(r.now.Sub(*d.Task.Deadline) / time.Minute),
	})
}

func (r *tickRun) escalate(ctx context.Context, d repo.DueTask) error {
	snap, err := r.graph(ctx)
	if err != nil {
		return err
	}
	msg := r.message(notify.KindEscalation, d)
	for _, m := range snap.ManagersOf(d.Owner.ID) {
		r.deliver(ctx, m, msg, "")
	}
	return nil
}

// deliver sends msg and returns the new handle, or "" when delivery failed or the
// recipient is inactive. Failures are logged and never stop the tick.
func (r *tickRun) deliver(ctx context.Context, to domain.User, msg notify.Message, prev notify.Handle) notify.Handle {
	if !to.Active {
		return ""
	}
	timeout := r.s.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	rcpt := notify.Recipient{UserID: to.ID, Name: to.FullName, Language: r.s.Language}
	var (
		h   notify.Handle
		err error
	)
	if prev != "" {
		h, err = r.s.Notifier.EditOrAppend(cctx, rcpt, prev, msg)
	} else {
		h, err = r.s.Notifier.Send(cctx, rcpt, msg)
	}
	metrics.NotificationsSent.WithLabelValues(msg.Kind, metrics.Status(err)).Inc()
	if err != nil {
		r.s.logger().Warn("delivery failed",
			zap.String("kind", msg.Kind),
			zap.String("task_id", msg.TaskID),
			zap.String("recipient", to.ID),
			zap.Error(err),
		)
		return ""
	}
	return h
}

func handleID(h notify.Handle) *string {
	if h == "" {
		return nil
	}
	s := string(h)
	return &s
}
