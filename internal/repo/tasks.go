package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"remindline/internal/domain"
)

type taskRow struct {
	ID                 string         `db:"id"`
	UserID             string         `db:"user_id"`
	Description        string         `db:"description"`
	Deadline           sql.NullString `db:"deadline"`
	Status             string         `db:"status"`
	CreatedAt          string         `db:"created_at"`
	UpdatedAt          string         `db:"updated_at"`
	StartedAt          sql.NullString `db:"started_at"`
	CompletedAt        sql.NullString `db:"completed_at"`
	CompletedBy        sql.NullString `db:"completed_by"`
	AssignedBy         sql.NullString `db:"assigned_by"`
	NextReminderAt     sql.NullString `db:"next_reminder_at"`
	LastReminderAt     sql.NullString `db:"last_reminder_at"`
	LastReminderMsgID  sql.NullString `db:"last_reminder_msg_id"`
	LastPostponeReason sql.NullString `db:"last_postpone_reason"`
	DelayMinutes       int            `db:"delay_minutes"`
}

func (r taskRow) toDomain() (domain.Task, error) {
	t := domain.Task{
		ID:                 r.ID,
		UserID:             r.UserID,
		Description:        r.Description,
		Status:             domain.Status(r.Status),
		CompletedBy:        stringPtr(r.CompletedBy),
		AssignedBy:         stringPtr(r.AssignedBy),
		LastReminderMsgID:  stringPtr(r.LastReminderMsgID),
		LastPostponeReason: stringPtr(r.LastPostponeReason),
		DelayMinutes:       r.DelayMinutes,
	}
	var err error
	if t.CreatedAt, err = parseTS(r.CreatedAt); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTS(r.UpdatedAt); err != nil {
		return t, err
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{r.Deadline, &t.Deadline},
		{r.StartedAt, &t.StartedAt},
		{r.CompletedAt, &t.CompletedAt},
		{r.NextReminderAt, &t.NextReminderAt},
		{r.LastReminderAt, &t.LastReminderAt},
	} {
		if *f.dst, err = parseNullTS(f.src); err != nil {
			return t, err
		}
	}
	return t, nil
}

const taskColumns = `id,user_id,description,deadline,status,created_at,updated_at,started_at,completed_at,completed_by,assigned_by,next_reminder_at,last_reminder_at,last_reminder_msg_id,last_postpone_reason,delay_minutes`

func (r Repo) InsertTask(ctx context.Context, q sqlx.ExecerContext, t domain.Task) error {
	_, err := q.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Description, tsPtr(t.Deadline), string(t.Status), ts(t.CreatedAt), ts(t.UpdatedAt),
		tsPtr(t.StartedAt), tsPtr(t.CompletedAt), nullableStringPtr(t.CompletedBy), nullableStringPtr(t.AssignedBy),
		tsPtr(t.NextReminderAt), tsPtr(t.LastReminderAt), nullableStringPtr(t.LastReminderMsgID),
		nullableStringPtr(t.LastPostponeReason), t.DelayMinutes)
	return err
}

func (r Repo) GetTask(ctx context.Context, q sqlx.QueryerContext, id string) (domain.Task, error) {
	var row taskRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id); err != nil {
		return domain.Task{}, notFound(err, "task", id)
	}
	return row.toDomain()
}

// TaskByReminderMessage finds the open task whose last reminder carried msgID.
func (r Repo) TaskByReminderMessage(ctx context.Context, userID, msgID string) (domain.Task, error) {
	var row taskRow
	err := r.DB.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE user_id=? AND last_reminder_msg_id=? AND status!='done' ORDER BY updated_at DESC LIMIT 1`, userID, msgID)
	if err != nil {
		return domain.Task{}, notFound(err, "reminder", msgID)
	}
	return row.toDomain()
}

type TaskFilters struct {
	UserIDs    []string
	Status     string
	OpenOnly   bool
	Limit      int
	DeadlineBy *time.Time
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if len(f.UserIDs) > 0 {
		clauses = append(clauses, "user_id IN (?)")
		args = append(args, f.UserIDs)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.OpenOnly {
		clauses = append(clauses, "status!='done'")
	}
	if f.DeadlineBy != nil {
		clauses = append(clauses, "deadline IS NOT NULL AND deadline<=?")
		args = append(args, ts(*f.DeadlineBy))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY COALESCE(deadline,'9999-12-31'), created_at, id`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	if len(f.UserIDs) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, err
		}
	}
	var rows []taskRow
	if err := r.DB.SelectContext(ctx, &rows, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	return tasksFromRows(rows)
}

func tasksFromRows(rows []taskRow) ([]domain.Task, error) {
	res := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// DueTask is a task selected by the scheduler together with its assignee.
type DueTask struct {
	Task  domain.Task
	Owner domain.User
}

// DueTasks selects open tasks whose reminder instant has arrived, plus tasks past
// their deadline that lost their reminder instant.
func (r Repo) DueTasks(ctx context.Context, now time.Time) ([]DueTask, error) {
	type dueRow struct {
		taskRow
		OwnerName       string `db:"owner_name"`
		OwnerRole       string `db:"owner_role"`
		OwnerDepartment string `db:"owner_department"`
		OwnerActive     bool   `db:"owner_active"`
		OwnerRegistered bool   `db:"owner_registered"`
		OwnerCreatedAt  string `db:"owner_created_at"`
	}
	cols := make([]string, 0, 16)
	for _, c := range strings.Split(taskColumns, ",") {
		cols = append(cols, "t."+c)
	}
	query := `SELECT ` + strings.Join(cols, ",") + `,
  u.full_name AS owner_name, u.role AS owner_role, u.department AS owner_department,
  u.active AS owner_active, u.registered AS owner_registered, u.created_at AS owner_created_at
FROM tasks t JOIN users u ON u.id = t.user_id
WHERE t.status != 'done'
  AND ((t.next_reminder_at IS NOT NULL AND t.next_reminder_at <= ?)
    OR (t.next_reminder_at IS NULL AND t.deadline IS NOT NULL AND t.deadline <= ?))
ORDER BY COALESCE(t.next_reminder_at, t.deadline), t.id`
	n := ts(now)
	var rows []dueRow
	if err := r.DB.SelectContext(ctx, &rows, query, n, n); err != nil {
		return nil, err
	}
	res := make([]DueTask, 0, len(rows))
	for _, row := range rows {
		t, err := row.taskRow.toDomain()
		if err != nil {
			return nil, err
		}
		owner, err := userRow{
			ID:         row.UserID,
			FullName:   row.OwnerName,
			Role:       row.OwnerRole,
			Department: row.OwnerDepartment,
			Active:     row.OwnerActive,
			Registered: row.OwnerRegistered,
			CreatedAt:  row.OwnerCreatedAt,
		}.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, DueTask{Task: t, Owner: owner})
	}
	return res, nil
}

// ReminderUpdate is the scheduler's bookkeeping for one task. It only applies if
// the task is still open and next_reminder_at still equals ExpectedNext, so a
// concurrent postpone or completion wins over a stale tick.
type ReminderUpdate struct {
	TaskID         string
	ExpectedNext   *time.Time
	Next           time.Time
	LastReminderAt *time.Time
	MessageID      *string
	Now            time.Time
}

func (r Repo) UpdateReminder(ctx context.Context, u ReminderUpdate) (bool, error) {
	sets := []string{"next_reminder_at=?", "updated_at=?"}
	args := []any{ts(u.Next), ts(u.Now)}
	if u.LastReminderAt != nil {
		sets = append(sets, "last_reminder_at=?")
		args = append(args, ts(*u.LastReminderAt))
	}
	if u.MessageID != nil {
		sets = append(sets, "last_reminder_msg_id=?")
		args = append(args, *u.MessageID)
	}
	args = append(args, u.TaskID, tsPtr(u.ExpectedNext))
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id=? AND status!='done' AND next_reminder_at IS ?`, args...)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// The lifecycle updates below are conditional on the task not being done and
// report false when nothing matched.

func (r Repo) StartTask(ctx context.Context, q sqlx.ExecerContext, id string, now time.Time) (bool, error) {
	n := ts(now)
	res, err := q.ExecContext(ctx, `UPDATE tasks SET status='in_progress', started_at=COALESCE(started_at, ?), updated_at=? WHERE id=? AND status!='done'`, n, n, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) PostponeTask(ctx context.Context, q sqlx.ExecerContext, id string, deadline, next time.Time, reason string, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE tasks SET deadline=?, next_reminder_at=?, last_postpone_reason=?, last_reminder_at=NULL, updated_at=? WHERE id=? AND status!='done'`,
		ts(deadline), ts(next), nullable(reason), ts(now), id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) CompleteTask(ctx context.Context, q sqlx.ExecerContext, id string, now time.Time, completer string, delayMinutes int) (bool, error) {
	n := ts(now)
	res, err := q.ExecContext(ctx, `UPDATE tasks SET status='done', completed_at=?, completed_by=?, delay_minutes=?, next_reminder_at=NULL, updated_at=? WHERE id=? AND status!='done'`,
		n, nullable(completer), delayMinutes, n, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) SetTaskStatus(ctx context.Context, q sqlx.ExecerContext, id string, status domain.Status, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=? AND status!='done'`, string(status), ts(now), id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) SnoozeTask(ctx context.Context, q sqlx.ExecerContext, id string, next, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE tasks SET next_reminder_at=?, updated_at=? WHERE id=? AND status!='done'`, ts(next), ts(now), id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// CountOpenByUser backs the per-user summary shown after reminders.
func (r Repo) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE user_id=? AND status!='done'`, userID)
	return n, err
}
