package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"remindline/internal/domain"
	"remindline/internal/engine/auth"
	"remindline/internal/events"
	"remindline/internal/notify"
	"remindline/internal/repo"
)

// MaxSnoozeMinutes bounds quick-action snoozes to one day.
const MaxSnoozeMinutes = 24 * 60

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID           string
	OwnerID      string
	Description  string
	DeadlineText string
	// ActorID is who asked for the task. When it differs from the owner the task
	// is an assignment and the actor must be allowed to edit the owner.
	ActorID string
}

type CreateResult struct {
	Task     domain.Task   `json:"task"`
	Managers []domain.User `json:"managers"`
}

// CreateTask parses the deadline, stores the task with its reminder clock set to
// the deadline and returns it with the owner's managers.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (CreateResult, error) {
	now := e.now()
	var deadline *time.Time
	if strings.TrimSpace(opts.DeadlineText) != "" {
		d, err := e.Parser.Parse(opts.DeadlineText, now)
		if err != nil {
			return CreateResult{}, err
		}
		deadline = &d
	}
	owner, err := e.Repo.GetUser(ctx, e.DB, opts.OwnerID)
	if err != nil {
		return CreateResult{}, err
	}
	if !owner.Active {
		return CreateResult{}, &domain.InvalidTransitionError{Op: "create", Reason: fmt.Sprintf("user %s is deactivated", owner.ID)}
	}
	if opts.ActorID != "" && opts.ActorID != opts.OwnerID {
		if err := e.Auth.RequireEdit(ctx, opts.ActorID, opts.OwnerID, "assign tasks"); err != nil {
			return CreateResult{}, err
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	task, err := domain.NewTask(id, owner.ID, opts.Description, deadline, opts.ActorID, now)
	if err != nil {
		return CreateResult{}, err
	}
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := e.Repo.InsertTask(ctx, tx, task); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return e.appendEvent(ctx, tx, task.ID, domain.EventCreate, actorOr(opts.ActorID, owner.ID), events.Meta{
			"deadline":    events.TimeValue(task.Deadline),
			"assigned_by": opts.ActorID,
		})
	})
	if err != nil {
		return CreateResult{}, err
	}
	managers, err := e.Hierarchy.ManagersOf(ctx, owner.ID)
	if err != nil {
		return CreateResult{}, err
	}
	if task.AssignedBy != nil {
		e.announce(ctx, []domain.User{owner}, notify.KindAssigned, task, owner, notify.TaskView{Actor: e.displayName(ctx, *task.AssignedBy)})
	}
	e.announce(ctx, managers, notify.KindCreated, task, owner, notify.TaskView{})
	return CreateResult{Task: task, Managers: managers}, nil
}

// loadForEdit reads the task inside tx and checks the actor may touch it.
func (e Engine) loadForEdit(ctx context.Context, tx *sqlx.Tx, id, actorID, action string) (domain.Task, error) {
	task, err := e.Repo.GetTask(ctx, tx, id)
	if err != nil {
		return task, err
	}
	if err := e.Auth.RequireEdit(ctx, actorID, task.UserID, action); err != nil {
		return task, err
	}
	if task.Status.Terminal() {
		return task, &domain.InvalidTransitionError{TaskID: id, Op: action, Reason: "task is done"}
	}
	return task, nil
}

// conditional turns a no-op conditional update into the error the caller should
// see: the task was completed between the read and the write.
func conditional(ok bool, err error, id, op string) error {
	if err != nil {
		return err
	}
	if !ok {
		return &domain.InvalidTransitionError{TaskID: id, Op: op, Reason: "task is done"}
	}
	return nil
}

// StartTask marks the task in progress. Starting twice keeps the first start time.
func (e Engine) StartTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	now := e.now()
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		task, err := e.loadForEdit(ctx, tx, id, actorID, "start")
		if err != nil {
			return err
		}
		if !task.CanAdvanceTo(domain.StatusInProgress) {
			return &domain.InvalidTransitionError{TaskID: id, Op: "start", Reason: fmt.Sprintf("status is %s", task.Status)}
		}
		ok, err := e.Repo.StartTask(ctx, tx, id, now)
		if err := conditional(ok, err, id, "start"); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, id, domain.EventStart, actorID, nil)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, e.DB, id)
}

type PostponeOptions struct {
	TaskID       string
	DeadlineText string
	Reason       string
	ActorID      string
}

// PostponeTask moves the deadline. Nothing changes if the text does not parse or
// the task is done.
func (e Engine) PostponeTask(ctx context.Context, opts PostponeOptions) (domain.Task, error) {
	now := e.now()
	newDeadline, err := e.Parser.Parse(opts.DeadlineText, now)
	if err != nil {
		return domain.Task{}, err
	}
	if !newDeadline.After(now) {
		return domain.Task{}, &domain.InvalidTransitionError{TaskID: opts.TaskID, Op: "postpone", Reason: "new deadline must be in the future"}
	}
	reason := strings.TrimSpace(opts.Reason)
	next := e.calendar().NextReminderAfter(&newDeadline)
	var old domain.Task
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		task, err := e.loadForEdit(ctx, tx, opts.TaskID, opts.ActorID, "postpone")
		if err != nil {
			return err
		}
		old = task
		ok, err := e.Repo.PostponeTask(ctx, tx, task.ID, newDeadline, next, reason, now)
		if err := conditional(ok, err, task.ID, "postpone"); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, task.ID, domain.EventPostpone, actorOr(opts.ActorID, task.UserID), events.Meta{
			"old":    events.TimeValue(task.Deadline),
			"new":    events.TimeValue(&newDeadline),
			"reason": reason,
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	task, err := e.Repo.GetTask(ctx, e.DB, opts.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	oldText := "-"
	if old.Deadline != nil {
		oldText = e.Calendar.Local(*old.Deadline)
	}
	e.announceToManagers(ctx, notify.KindPostponed, task, notify.TaskView{OldDeadline: oldText, Reason: reason})
	return task, nil
}

// CompleteTask closes the task and records how many whole minutes it ran late.
func (e Engine) CompleteTask(ctx context.Context, id, completerID string) (domain.Task, error) {
	now := e.now()
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		task, err := e.loadForEdit(ctx, tx, id, completerID, "complete")
		if err != nil {
			return err
		}
		delay := DelayMinutes(task.Deadline, now)
		completer := actorOr(completerID, task.UserID)
		ok, err := e.Repo.CompleteTask(ctx, tx, id, now, completer, delay)
		if err := conditional(ok, err, id, "complete"); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, id, domain.EventDone, completer, events.Meta{"delay_minutes": delay})
	})
	if err != nil {
		return domain.Task{}, err
	}
	task, err := e.Repo.GetTask(ctx, e.DB, id)
	if err != nil {
		return domain.Task{}, err
	}
	e.announceToManagers(ctx, notify.KindCompleted, task, notify.TaskView{Delay: task.DelayMinutes})
	return task, nil
}

// DelayMinutes is max(0, floor((now - deadline) / 1m)), or 0 without a deadline.
func DelayMinutes(deadline *time.Time, now time.Time) int {
	if deadline == nil {
		return 0
	}
	d := now.Sub(*deadline)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// SetStatus changes the status directly. Done is reached only through
// CompleteTask, and statuses never move backwards.
func (e Engine) SetStatus(ctx context.Context, id string, status domain.Status, actorID string) (domain.Task, error) {
	if status == domain.StatusDone {
		return domain.Task{}, &domain.InvalidTransitionError{TaskID: id, Op: "status", Reason: "use complete to finish a task"}
	}
	if !status.Valid() {
		return domain.Task{}, &domain.InvalidTransitionError{TaskID: id, Op: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	now := e.now()
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		task, err := e.loadForEdit(ctx, tx, id, actorID, "status")
		if err != nil {
			return err
		}
		if !task.CanAdvanceTo(status) {
			return &domain.InvalidTransitionError{TaskID: id, Op: "status", Reason: fmt.Sprintf("cannot move from %s to %s", task.Status, status)}
		}
		ok, err := e.Repo.SetTaskStatus(ctx, tx, id, status, now)
		if err := conditional(ok, err, id, "status"); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, id, domain.EventStatus, actorID, events.Meta{"old": string(task.Status), "new": string(status)})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, e.DB, id)
}

// SnoozeTask pushes the next reminder minutes into the future without touching the
// deadline.
func (e Engine) SnoozeTask(ctx context.Context, id string, minutes int, actorID string) (domain.Task, error) {
	if minutes <= 0 || minutes > MaxSnoozeMinutes {
		return domain.Task{}, &domain.InvalidTransitionError{TaskID: id, Op: "snooze", Reason: fmt.Sprintf("minutes must be between 1 and %d", MaxSnoozeMinutes)}
	}
	now := e.now()
	next := now.Add(time.Duration(minutes) * time.Minute)
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := e.loadForEdit(ctx, tx, id, actorID, "snooze"); err != nil {
			return err
		}
		ok, err := e.Repo.SnoozeTask(ctx, tx, id, next, now)
		if err := conditional(ok, err, id, "snooze"); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, id, domain.EventSnooze, actorID, events.Meta{"minutes": minutes, "next": events.TimeValue(&next)})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, e.DB, id)
}

// SnoozeUntil is the "enter time" quick action: the reminder fires at a parsed
// instant instead of a fixed offset.
func (e Engine) SnoozeUntil(ctx context.Context, id, text, actorID string) (domain.Task, error) {
	now := e.now()
	at, err := e.Parser.Parse(text, now)
	if err != nil {
		return domain.Task{}, err
	}
	minutes := int((at.Sub(now) + time.Minute - 1) / time.Minute)
	return e.SnoozeTask(ctx, id, minutes, actorID)
}

// GetTask returns a task the actor may see.
func (e Engine) GetTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	task, err := e.Repo.GetTask(ctx, e.DB, id)
	if err != nil {
		return task, err
	}
	if err := e.requireView(ctx, actorID, task.UserID); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (e Engine) TaskEvents(ctx context.Context, id, actorID string) ([]domain.TaskEvent, error) {
	if _, err := e.GetTask(ctx, id, actorID); err != nil {
		return nil, err
	}
	return e.Repo.TaskEvents(ctx, id)
}

type TaskListOptions struct {
	ActorID  string
	UserID   string
	Status   string
	OpenOnly bool
	Limit    int
}

// ListTasks returns the tasks the actor may see: their own and their
// subordinates', or everything for heads and developers.
func (e Engine) ListTasks(ctx context.Context, opts TaskListOptions) ([]domain.Task, error) {
	f := repo.TaskFilters{Status: opts.Status, OpenOnly: opts.OpenOnly, Limit: opts.Limit}
	if opts.ActorID == "" {
		if opts.UserID != "" {
			f.UserIDs = []string{opts.UserID}
		}
		return e.Repo.ListTasks(ctx, f)
	}
	snap, err := e.Hierarchy.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if auth.Allowed(snap, opts.ActorID, auth.PermViewAll) {
		if opts.UserID != "" {
			f.UserIDs = []string{opts.UserID}
		}
		return e.Repo.ListTasks(ctx, f)
	}
	visible := append([]string{opts.ActorID}, snap.SubordinatesOf(opts.ActorID)...)
	if opts.UserID != "" {
		if !contains(visible, opts.UserID) {
			return nil, &domain.ForbiddenError{ActorID: opts.ActorID, Action: "view tasks of " + opts.UserID}
		}
		visible = []string{opts.UserID}
	}
	f.UserIDs = visible
	return e.Repo.ListTasks(ctx, f)
}

func (e Engine) requireView(ctx context.Context, actorID, ownerID string) error {
	if actorID == "" {
		return nil
	}
	snap, err := e.Hierarchy.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.CanEdit(actorID, ownerID) || auth.Allowed(snap, actorID, auth.PermViewAll) {
		return nil
	}
	return &domain.ForbiddenError{ActorID: actorID, Action: "view task"}
}

// ReplyResult is what happened to a reply on a reminder message.
type ReplyResult struct {
	Task      domain.Task   `json:"task"`
	Forwarded []domain.User `json:"forwarded"`
}

// ReplyToReminder forwards the assignee's answer to their last reminder to the
// managers above them.
func (e Engine) ReplyToReminder(ctx context.Context, actorID, messageID, text string) (ReplyResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReplyResult{}, errors.New("reply text is required")
	}
	task, err := e.Repo.TaskByReminderMessage(ctx, actorID, messageID)
	if err != nil {
		return ReplyResult{}, err
	}
	managers, err := e.Hierarchy.ManagersOf(ctx, task.UserID)
	if err != nil {
		return ReplyResult{}, err
	}
	owner, err := e.Repo.GetUser(ctx, e.DB, task.UserID)
	if err != nil {
		return ReplyResult{}, err
	}
	delivered := e.announce(ctx, managers, notify.KindReply, task, owner, notify.TaskView{Text: text})
	return ReplyResult{Task: task, Forwarded: delivered}, nil
}

func actorOr(actorID, fallback string) string {
	if actorID != "" {
		return actorID
	}
	return fallback
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// View builds the template data shared by every task message.
func (e Engine) View(task domain.Task, owner domain.User) notify.TaskView {
	deadline := "-"
	if task.Deadline != nil {
		deadline = e.Calendar.Local(*task.Deadline)
	}
	return notify.TaskView{
		Ref:         notify.ShortRef(task.ID),
		Description: task.Description,
		Deadline:    deadline,
		Owner:       owner.FullName,
	}
}

func (e Engine) displayName(ctx context.Context, userID string) string {
	u, err := e.Repo.GetUser(ctx, e.DB, userID)
	if err != nil {
		return userID
	}
	return u.FullName
}

func (e Engine) announceToManagers(ctx context.Context, kind string, task domain.Task, extra notify.TaskView) {
	if e.Notifier == nil || e.Texts == nil {
		return
	}
	owner, err := e.Repo.GetUser(ctx, e.DB, task.UserID)
	if err != nil {
		e.logger().Warn("announce: load owner", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	managers, err := e.Hierarchy.ManagersOf(ctx, task.UserID)
	if err != nil {
		e.logger().Warn("announce: resolve managers", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	e.announce(ctx, managers, kind, task, owner, extra)
}

// announce delivers best-effort messages and returns who received them. Failures
// are logged; the lifecycle change has already committed.
func (e Engine) announce(ctx context.Context, to []domain.User, kind string, task domain.Task, owner domain.User, extra notify.TaskView) []domain.User {
	if e.Notifier == nil || e.Texts == nil || len(to) == 0 {
		return nil
	}
	v := e.View(task, owner)
	v.Actor, v.Reason, v.OldDeadline, v.Delay, v.Text = extra.Actor, extra.Reason, extra.OldDeadline, extra.Delay, extra.Text
	msg := e.Texts.Build(e.language(), kind, task.ID, v)
	var delivered []domain.User
	for _, u := range to {
		_, err := e.Notifier.Send(ctx, notify.Recipient{UserID: u.ID, Name: u.FullName, Language: e.language()}, msg)
		recordDelivery(kind, err)
		if err != nil {
			e.logger().Warn("notify failed", zap.String("kind", kind), zap.String("task_id", task.ID), zap.String("recipient", u.ID), zap.Error(err))
			continue
		}
		delivered = append(delivered, u)
	}
	return delivered
}
