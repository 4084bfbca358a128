package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"remindline/internal/config"
	"remindline/internal/db"
	"remindline/internal/domain"
	"remindline/internal/engine"
	"remindline/internal/migrate"
	"remindline/internal/notify"
	"remindline/internal/repo"
	"remindline/internal/timeparse"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Sent   *notify.Recorder
	now    *time.Time
}

// 2025-09-30 09:00 Europe/Moscow.
var start = time.Date(2025, 9, 30, 6, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Hierarchy.DeveloperID = "dev"
	eng, err := engine.New(conn, cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	now := start
	eng.Now = func() time.Time { return now }
	rec := &notify.Recorder{}
	texts, err := notify.NewTexts(notify.LanguageRu, nil)
	if err != nil {
		t.Fatalf("texts: %v", err)
	}
	eng.Notifier = rec
	eng.Texts = texts
	env := testEnv{Engine: eng, Ctx: context.Background(), Sent: rec, now: &now}
	for _, id := range []string{"dev", "alice", "bob", "carol"} {
		if _, err := eng.EnsureUser(env.Ctx, id, id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}
	return env
}

func (env testEnv) advance(d time.Duration) {
	*env.now = env.now.Add(d)
}

func (env testEnv) createTask(t *testing.T, owner, deadline string) domain.Task {
	t.Helper()
	res, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: owner, Description: "report", DeadlineText: deadline})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return res.Task
}

func (env testEnv) events(t *testing.T, id string) []domain.TaskEvent {
	t.Helper()
	evs, err := env.Engine.Repo.TaskEvents(env.Ctx, id)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	return evs
}

func TestCreateTaskRelativeDeadline(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.LinkManager(env.Ctx, "", "bob", "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	res, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: "alice", Description: "  отчёт  ", DeadlineText: "через 20 минут"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	task := res.Task
	want := start.Add(20 * time.Minute)
	if task.Deadline == nil || !task.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", task.Deadline, want)
	}
	if task.NextReminderAt == nil || !task.NextReminderAt.Equal(want) {
		t.Fatalf("next reminder = %v, want deadline", task.NextReminderAt)
	}
	if task.Status != domain.StatusNew || task.Description != "отчёт" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if len(res.Managers) != 2 || res.Managers[0].ID != "bob" || res.Managers[1].ID != "dev" {
		t.Fatalf("managers = %+v", res.Managers)
	}
	evs := env.events(t, task.ID)
	if len(evs) != 1 || evs[0].Kind != domain.EventCreate {
		t.Fatalf("expected one create event, got %+v", evs)
	}
	if got := env.Sent.To("bob"); len(got) != 1 || got[0].Msg.Kind != notify.KindCreated {
		t.Fatalf("manager not told about the new task: %+v", got)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: "ghost", Description: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: "alice", Description: "x", DeadlineText: "когда-нибудь"})
	var perr *timeparse.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: "alice", Description: "   "})
	if err == nil {
		t.Fatalf("expected description error")
	}
	if _, err := env.Engine.DeactivateUser(env.Ctx, "", "carol"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: "carol", Description: "x"})
	var terr *domain.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected inactive owner rejection, got %v", err)
	}
	tasks, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{})
	if err != nil || len(tasks) != 0 {
		t.Fatalf("nothing should be stored: %v %v", tasks, err)
	}
}

func TestAssignRequiresHierarchy(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: "alice", Description: "x", ActorID: "carol"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.Engine.LinkManager(env.Ctx, "", "carol", "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	res, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{OwnerID: "alice", Description: "x", ActorID: "carol", DeadlineText: "завтра"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.Task.AssignedBy == nil || *res.Task.AssignedBy != "carol" {
		t.Fatalf("assigned_by = %v", res.Task.AssignedBy)
	}
	if got := env.Sent.To("alice"); len(got) != 1 || got[0].Msg.Kind != notify.KindAssigned {
		t.Fatalf("owner not told about the assignment: %+v", got)
	}
}

func TestPostponeMovesDeadlineAndReminder(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "alice", "через 20 минут")
	got, err := env.Engine.PostponeTask(env.Ctx, engine.PostponeOptions{TaskID: task.ID, DeadlineText: "через 30 минут", Reason: "ждём данные", ActorID: "alice"})
	if err != nil {
		t.Fatalf("postpone: %v", err)
	}
	if !got.Deadline.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("deadline = %v", got.Deadline)
	}
	// 09:35 local is before the window opens, so the check moves to 10:00.
	if want := time.Date(2025, 9, 30, 7, 0, 0, 0, time.UTC); !got.NextReminderAt.Equal(want) {
		t.Fatalf("next reminder = %v, want %v", got.NextReminderAt, want)
	}
	if got.LastPostponeReason == nil || *got.LastPostponeReason != "ждём данные" {
		t.Fatalf("reason = %v", got.LastPostponeReason)
	}
	evs := env.events(t, task.ID)
	last := evs[len(evs)-1]
	if last.Kind != domain.EventPostpone || last.Meta["reason"] != "ждём данные" || last.Meta["old"] == nil || last.Meta["new"] == nil {
		t.Fatalf("postpone event = %+v", last)
	}
}

func TestPostponeUnparsableLeavesTaskUntouched(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "alice", "через 20 минут")
	_, err := env.Engine.PostponeTask(env.Ctx, engine.PostponeOptions{TaskID: task.ID, DeadlineText: "потом", ActorID: "alice"})
	var perr *timeparse.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	got, err := env.Engine.GetTask(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Deadline.Equal(*task.Deadline) || len(env.events(t, task.ID)) != 1 {
		t.Fatalf("task changed after failed postpone: %+v", got)
	}
}

func TestPostponeDoneTaskRejected(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "alice", "через 20 минут")
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	before := len(env.events(t, task.ID))
	_, err := env.Engine.PostponeTask(env.Ctx, engine.PostponeOptions{TaskID: task.ID, DeadlineText: "завтра", ActorID: "alice"})
	var terr *domain.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if after := len(env.events(t, task.ID)); after != before {
		t.Fatalf("events grew from %d to %d", before, after)
	}
}

func TestCompleteRecordsDelay(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "alice", "через 20 минут")
	env.advance(45*time.Minute + 30*time.Second)
	done, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.StatusDone || done.DelayMinutes != 25 {
		t.Fatalf("unexpected completion: status=%s delay=%d", done.Status, done.DelayMinutes)
	}
	if done.NextReminderAt != nil || done.CompletedBy == nil || *done.CompletedBy != "alice" {
		t.Fatalf("completion bookkeeping: %+v", done)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice"); err == nil {
		t.Fatalf("second completion should fail")
	}
}

func TestDelayMinutes(t *testing.T) {
	d := start
	cases := []struct {
		now  time.Time
		want int
	}{
		{start.Add(-time.Hour), 0},
		{start, 0},
		{start.Add(59 * time.Second), 0},
		{start.Add(61 * time.Second), 1},
		{start.Add(3 * time.Hour), 180},
	}
	for _, tc := range cases {
		if got := engine.DelayMinutes(&d, tc.now); got != tc.want {
			t.Fatalf("DelayMinutes(%v) = %d, want %d", tc.now, got, tc.want)
		}
	}
	if engine.DelayMinutes(nil, start) != 0 {
		t.Fatalf("no deadline means no delay")
	}
}

func TestStatusIsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "alice", "")
	first, err := env.Engine.StartTask(env.Ctx, task.ID, "alice")
	if err != nil || first.Status != domain.StatusInProgress {
		t.Fatalf("start: %v", err)
	}
	env.advance(time.Minute)
	again, err := env.Engine.StartTask(env.Ctx, task.ID, "alice")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !again.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("started_at moved: %v -> %v", first.StartedAt, again.StartedAt)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, task.ID, domain.StatusAlmostDone, "alice"); err != nil {
		t.Fatalf("almost done: %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, task.ID, domain.StatusNew, "alice"); err == nil {
		t.Fatalf("moving backwards should fail")
	}
	if _, err := env.Engine.SetStatus(env.Ctx, task.ID, domain.StatusDone, "alice"); err == nil {
		t.Fatalf("done must go through complete")
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := env.Engine.StartTask(env.Ctx, task.ID, "alice"); err == nil {
		t.Fatalf("start after done should fail")
	}
	if _, err := env.Engine.SetStatus(env.Ctx, task.ID, domain.StatusInProgress, "alice"); err == nil {
		t.Fatalf("status after done should fail")
	}
}

func TestEditRights(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "alice", "")
	if _, err := env.Engine.StartTask(env.Ctx, task.ID, "carol"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger should be forbidden, got %v", err)
	}
	if _, err := env.Engine.StartTask(env.Ctx, task.ID, "dev"); err != nil {
		t.Fatalf("developer may edit anything: %v", err)
	}
	if _, err := env.Engine.LinkManager(env.Ctx, "", "bob", "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := env.Engine.LinkManager(env.Ctx, "", "carol", "bob"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "carol"); err != nil {
		t.Fatalf("transitive manager may complete: %v", err)
	}
}

func TestSnooze(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "alice", "через 20 минут")
	got, err := env.Engine.SnoozeTask(env.Ctx, task.ID, 15, "alice")
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if !got.NextReminderAt.Equal(start.Add(15*time.Minute)) || !got.Deadline.Equal(*task.Deadline) {
		t.Fatalf("snooze should only move the reminder: %+v", got)
	}
	for _, m := range []int{0, -5, engine.MaxSnoozeMinutes + 1} {
		if _, err := env.Engine.SnoozeTask(env.Ctx, task.ID, m, "alice"); err == nil {
			t.Fatalf("snooze %d should fail", m)
		}
	}
	got, err = env.Engine.SnoozeUntil(env.Ctx, task.ID, "через 2 часа", "alice")
	if err != nil {
		t.Fatalf("snooze until: %v", err)
	}
	if !got.NextReminderAt.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("next reminder = %v", got.NextReminderAt)
	}
}

func TestLinkManagerRejectsCycle(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.LinkManager(env.Ctx, "dev", "bob", "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := env.Engine.LinkManager(env.Ctx, "dev", "carol", "bob"); err != nil {
		t.Fatalf("link: %v", err)
	}
	_, err := env.Engine.LinkManager(env.Ctx, "dev", "alice", "carol")
	if !errors.Is(err, domain.ErrCycleRejected) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
	_, err = env.Engine.LinkManager(env.Ctx, "dev", "alice", "alice")
	if !errors.Is(err, domain.ErrCycleRejected) {
		t.Fatalf("expected self link rejection, got %v", err)
	}
	_, err = env.Engine.LinkManager(env.Ctx, "dev", "bob", "alice")
	var dup *domain.DuplicateLinkError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := env.Engine.LinkManager(env.Ctx, "alice", "alice", "carol"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("employees may not manage links, got %v", err)
	}
	managers, err := env.Engine.ManagersOf(env.Ctx, "alice")
	if err != nil {
		t.Fatalf("managers: %v", err)
	}
	var ids []string
	for _, m := range managers {
		ids = append(ids, m.ID)
	}
	if len(ids) != 3 || ids[0] != "bob" || ids[1] != "carol" || ids[2] != "dev" {
		t.Fatalf("managers = %v", ids)
	}
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	dev, err := env.Engine.GetUser(env.Ctx, "dev")
	if err != nil || dev.Role != domain.RoleDeveloper || !dev.Registered {
		t.Fatalf("configured developer not promoted: %+v %v", dev, err)
	}
	if _, err := env.Engine.SetRole(env.Ctx, "alice", "bob", domain.RoleHead); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("employee cannot change roles, got %v", err)
	}
	if _, err := env.Engine.SetRole(env.Ctx, "dev", "bob", domain.RoleHead); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if _, err := env.Engine.SetRole(env.Ctx, "bob", "carol", domain.RoleDeveloper); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("heads cannot grant developer, got %v", err)
	}
	if _, err := env.Engine.DeactivateUser(env.Ctx, "dev", "dev"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("configured developer cannot be deactivated, got %v", err)
	}
	u, err := env.Engine.Register(env.Ctx, "alice", "Алиса Петрова", "sales")
	if err != nil || !u.Registered || u.Department != "sales" || u.FullName != "Алиса Петрова" {
		t.Fatalf("register: %+v %v", u, err)
	}
	u, err = env.Engine.EnsureUser(env.Ctx, "alice", "")
	if err != nil || u.FullName != "Алиса Петрова" {
		t.Fatalf("ensure with empty name should keep the name: %+v %v", u, err)
	}
}

func TestDeactivateDropsLinks(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.LinkManager(env.Ctx, "", "bob", "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := env.Engine.LinkManager(env.Ctx, "", "carol", "bob"); err != nil {
		t.Fatalf("link: %v", err)
	}
	u, err := env.Engine.DeactivateUser(env.Ctx, "dev", "bob")
	if err != nil || u.Active {
		t.Fatalf("deactivate: %+v %v", u, err)
	}
	links, err := env.Engine.Repo.ListManagerLinks(env.Ctx)
	if err != nil || len(links) != 0 {
		t.Fatalf("links should be gone: %+v %v", links, err)
	}
	if _, err := env.Engine.ReactivateUser(env.Ctx, "dev", "bob"); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	active, err := env.Engine.ListUsers(env.Ctx, repo.UserFilters{ActiveOnly: true})
	if err != nil || len(active) != 4 {
		t.Fatalf("active users = %d %v", len(active), err)
	}
}

func TestListTasksVisibility(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.LinkManager(env.Ctx, "", "bob", "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	env.createTask(t, "alice", "")
	env.createTask(t, "bob", "")
	env.createTask(t, "carol", "")

	count := func(actor, user string) int {
		t.Helper()
		tasks, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ActorID: actor, UserID: user})
		if err != nil {
			t.Fatalf("list as %s: %v", actor, err)
		}
		return len(tasks)
	}
	if n := count("alice", ""); n != 1 {
		t.Fatalf("alice sees %d", n)
	}
	if n := count("bob", ""); n != 2 {
		t.Fatalf("bob sees %d", n)
	}
	if n := count("dev", ""); n != 3 {
		t.Fatalf("dev sees %d", n)
	}
	if _, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ActorID: "alice", UserID: "carol"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestReplyToReminderForwardsToManagers(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.LinkManager(env.Ctx, "", "bob", "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	task := env.createTask(t, "alice", "через 20 минут")
	msg := "msg-42"
	ok, err := env.Engine.Repo.UpdateReminder(env.Ctx, repo.ReminderUpdate{
		TaskID: task.ID, ExpectedNext: task.NextReminderAt, Next: start.Add(time.Hour), MessageID: &msg, Now: start,
	})
	if err != nil || !ok {
		t.Fatalf("seed reminder: %v", err)
	}
	env.Sent.Reset()
	res, err := env.Engine.ReplyToReminder(env.Ctx, "alice", msg, "почти готово")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if res.Task.ID != task.ID || len(res.Forwarded) != 2 {
		t.Fatalf("reply result = %+v", res)
	}
	got := env.Sent.To("bob")
	if len(got) != 1 || got[0].Msg.Kind != notify.KindReply {
		t.Fatalf("bob got %+v", got)
	}
	if _, err := env.Engine.ReplyToReminder(env.Ctx, "bob", msg, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reply from someone else should not match, got %v", err)
	}

	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "alice"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	env.Sent.Reset()
	if _, err := env.Engine.ReplyToReminder(env.Ctx, "alice", msg, "уже всё"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reply to a done task's reminder should not match, got %v", err)
	}
	if got := env.Sent.To("bob"); len(got) != 0 {
		t.Fatalf("bob should not hear about a done task, got %+v", got)
	}
}
