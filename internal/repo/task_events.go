package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"remindline/internal/domain"
)

type eventRow struct {
	ID      int64          `db:"id"`
	TaskID  string         `db:"task_id"`
	Kind    string         `db:"kind"`
	At      string         `db:"at"`
	ActorID sql.NullString `db:"actor_id"`
	Meta    string         `db:"meta"`
}

func (r eventRow) toDomain() (domain.TaskEvent, error) {
	at, err := parseTS(r.At)
	if err != nil {
		return domain.TaskEvent{}, err
	}
	e := domain.TaskEvent{ID: r.ID, TaskID: r.TaskID, Kind: domain.EventKind(r.Kind), At: at, ActorID: r.ActorID.String}
	if r.Meta != "" {
		if err := json.Unmarshal([]byte(r.Meta), &e.Meta); err != nil {
			return e, fmt.Errorf("event %d meta: %w", r.ID, err)
		}
	}
	return e, nil
}

const eventColumns = `id,task_id,kind,at,actor_id,meta`

func eventsFromRows(rows []eventRow) ([]domain.TaskEvent, error) {
	res := make([]domain.TaskEvent, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

// TaskEvents returns the journal of one task, oldest first.
func (r Repo) TaskEvents(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	var rows []eventRow
	if err := r.DB.SelectContext(ctx, &rows, `SELECT `+eventColumns+` FROM task_events WHERE task_id=? ORDER BY id ASC`, taskID); err != nil {
		return nil, err
	}
	return eventsFromRows(rows)
}

// LatestEvents returns the newest events first, optionally filtered by kind.
func (r Repo) LatestEvents(ctx context.Context, limit int, kind string) ([]domain.TaskEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + eventColumns + ` FROM task_events`
	var args []any
	if kind != "" {
		query += ` WHERE kind=?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	var rows []eventRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return eventsFromRows(rows)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.TaskEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []eventRow
	if err := r.DB.SelectContext(ctx, &rows, `SELECT `+eventColumns+` FROM task_events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit); err != nil {
		return nil, err
	}
	return eventsFromRows(rows)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.GetContext(ctx, &id, `SELECT COALESCE(MAX(id),0) FROM task_events`)
	return id, err
}

// RelayCursor returns the last event id delivered to sink, or ok=false if the sink
// has never run.
func (r Repo) RelayCursor(ctx context.Context, sink string) (id int64, ok bool, err error) {
	err = r.DB.GetContext(ctx, &id, `SELECT last_id FROM relay_cursors WHERE sink=?`, sink)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r Repo) SetRelayCursor(ctx context.Context, sink string, id int64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO relay_cursors(sink,last_id,updated_at) VALUES (?,?,?)
ON CONFLICT(sink) DO UPDATE SET last_id=excluded.last_id, updated_at=excluded.updated_at`, sink, id, ts(now))
	return err
}
