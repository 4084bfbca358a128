package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ─── Scheduler ───────────────────────────────────────────────────────────────

	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindline",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Scheduler ticks, labelled by outcome (ran, skipped, failed).",
	}, []string{"outcome"})

	SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "remindline",
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Time spent processing one tick.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	SchedulerTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindline",
		Subsystem: "scheduler",
		Name:      "tasks_total",
		Help:      "Due tasks handled, labelled by classification.",
	}, []string{"action"})

	SchedulerStaleUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remindline",
		Subsystem: "scheduler",
		Name:      "stale_updates_total",
		Help:      "Reminder updates skipped because the task changed during the tick.",
	})

	// ─── Notifications ───────────────────────────────────────────────────────────

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindline",
		Subsystem: "notify",
		Name:      "messages_total",
		Help:      "Messages delivered, labelled by kind and status (ok, failed).",
	}, []string{"kind", "status"})

	// ─── Lifecycle ───────────────────────────────────────────────────────────────

	TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindline",
		Subsystem: "tasks",
		Name:      "transitions_total",
		Help:      "Task lifecycle events written, labelled by kind.",
	}, []string{"kind"})

	// ─── Relay ───────────────────────────────────────────────────────────────────

	RelayPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remindline",
		Subsystem: "relay",
		Name:      "events_total",
		Help:      "Task events published to sinks, labelled by sink and status.",
	}, []string{"sink", "status"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func Status(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
