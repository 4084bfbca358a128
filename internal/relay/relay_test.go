package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindline/internal/db"
	"remindline/internal/domain"
	"remindline/internal/events"
	"remindline/internal/migrate"
	"remindline/internal/relay"
	"remindline/internal/repo"
)

var t0 = time.Date(2025, 9, 30, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, n int) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn.DB))
	r := repo.Repo{DB: conn}
	ctx := context.Background()

	u, err := domain.NewUser("u", "User", t0)
	require.NoError(t, err)
	require.NoError(t, r.InsertUser(ctx, r.DB, u))
	d := t0.Add(time.Hour)
	task, err := domain.NewTask("task-1", "u", "report", &d, "", t0)
	require.NoError(t, err)
	require.NoError(t, r.InsertTask(ctx, r.DB, task))

	w := events.Writer{Now: func() time.Time { return t0 }}
	for i := 0; i < n; i++ {
		require.NoError(t, w.Append(ctx, r.DB, task.ID, domain.EventPostpone, "u", events.Meta{"reason": "r", "n": i}))
	}
	return r
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestWebhookSinkSignsAndAdvancesCursor(t *testing.T) {
	r := seed(t, 3)
	var (
		mu     sync.Mutex
		bodies []relay.Envelope
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		assert.Equal(t, "sha256="+relay.Sign("s3cret", body), req.Header.Get("X-Remindline-Signature"))
		assert.Equal(t, "postpone", req.Header.Get("X-Remindline-Event"))
		var env relay.Envelope
		require.NoError(t, json.Unmarshal(body, &env))
		mu.Lock()
		bodies = append(bodies, env)
		mu.Unlock()
	}))
	defer srv.Close()

	rl := &relay.Relay{Store: r, Sinks: []relay.Sink{relay.NewWebhookSink("sheet", srv.URL, "s3cret", time.Second)}, BatchSize: 2}
	require.NoError(t, rl.Flush(context.Background()))

	require.Len(t, bodies, 3)
	assert.Equal(t, "task-1", bodies[0].TaskID)
	assert.Equal(t, "r", bodies[0].Meta["reason"])
	cur, ok, err := r.RelayCursor(context.Background(), "sheet")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bodies[2].ID, cur)

	// Nothing new: no further deliveries.
	require.NoError(t, rl.Flush(context.Background()))
	assert.Len(t, bodies, 3)
}

func TestWebhookSinkStopsAtFailure(t *testing.T) {
	r := seed(t, 3)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) == 2 {
			http.Error(w, "boom", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	rl := &relay.Relay{Store: r, Sinks: []relay.Sink{relay.NewWebhookSink("sheet", srv.URL, "", time.Second)}}
	err := rl.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")

	evs, err := r.TaskEvents(context.Background(), "task-1")
	require.NoError(t, err)
	cur, _, err := r.RelayCursor(context.Background(), "sheet")
	require.NoError(t, err)
	assert.Equal(t, evs[0].ID, cur, "cursor stops before the failed event")

	require.NoError(t, rl.Flush(context.Background()))
	assert.EqualValues(t, 4, calls.Load(), "retry resumes at the failed event")
}

func TestKafkaSinkKeysByTask(t *testing.T) {
	r := seed(t, 2)
	fw := &fakeWriter{}
	sink := &relay.KafkaSink{Topic: "remindline.task-events", Writer: fw}
	rl := &relay.Relay{Store: r, Sinks: []relay.Sink{sink}}
	require.NoError(t, rl.Flush(context.Background()))

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, "task-1", string(fw.msgs[0].Key))
	var env relay.Envelope
	require.NoError(t, json.Unmarshal(fw.msgs[1].Value, &env))
	assert.Equal(t, "postpone", env.Kind)
	assert.Equal(t, "kafka:remindline.task-events", sink.Name())
}

func TestFailingSinkDoesNotBlockOthers(t *testing.T) {
	r := seed(t, 2)
	broken := &relay.KafkaSink{Topic: "broken", Writer: &fakeWriter{err: errors.New("no brokers")}}
	ok := &relay.KafkaSink{Topic: "ok", Writer: &fakeWriter{}}
	rl := &relay.Relay{Store: r, Sinks: []relay.Sink{broken, ok}}

	err := rl.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka:broken")

	_, found, err := r.RelayCursor(context.Background(), "kafka:broken")
	require.NoError(t, err)
	assert.False(t, found)
	cur, found, err := r.RelayCursor(context.Background(), "kafka:ok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotZero(t, cur)
}
