package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"remindline/internal/domain"
)

// Writer appends TaskEvent rows. It always writes inside the caller's
// transaction so the journal commits together with the state change.
type Writer struct {
	Now func() time.Time
}

type Meta map[string]any

func (w Writer) Append(ctx context.Context, tx sqlx.ExecerContext, taskID string, kind domain.EventKind, actorID string, meta Meta) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	at := w.Now().UTC().Format("2006-01-02T15:04:05Z")
	if meta == nil {
		meta = Meta{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal event meta: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO task_events(task_id,kind,at,actor_id,meta) VALUES (?,?,?,?,?)`,
		taskID, string(kind), at, nullable(actorID), string(data))
	return err
}

// TimeValue renders an optional instant for event meta.
func TimeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
