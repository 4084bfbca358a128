package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersExposed(t *testing.T) {
	SchedulerTasks.WithLabelValues("overdue").Inc()
	NotificationsSent.WithLabelValues("overdue_manager", Status(nil)).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `remindline_scheduler_tasks_total{action="overdue"}`)
	assert.Contains(t, body, `remindline_notify_messages_total{kind="overdue_manager",status="ok"}`)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "failed", Status(errors.New("x")))
}
