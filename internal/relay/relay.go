// Package relay publishes the task event journal to downstream sinks
// (webhooks, Kafka). Each sink has its own persisted cursor so a slow or broken
// sink never holds the others back.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"remindline/internal/config"
	"remindline/internal/domain"
	"remindline/internal/metrics"
)

const (
	defaultInterval = 2 * time.Second
	defaultBatch    = 100
)

// Store is the journal side the relay reads. repo.Repo implements it.
type Store interface {
	EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.TaskEvent, error)
	RelayCursor(ctx context.Context, sink string) (int64, bool, error)
	SetRelayCursor(ctx context.Context, sink string, id int64, now time.Time) error
}

// Sink accepts events in journal order. It returns how many leading events were
// accepted; the cursor advances past exactly those.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []domain.TaskEvent) (int, error)
	Close() error
}

// Envelope is the wire form of one event.
type Envelope struct {
	ID      int64          `json:"id"`
	TaskID  string         `json:"task_id"`
	Kind    string         `json:"kind"`
	At      string         `json:"at"`
	ActorID string         `json:"actor_id,omitempty"`
	Meta    map[string]any `json:"meta"`
}

func NewEnvelope(ev domain.TaskEvent) Envelope {
	meta := ev.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return Envelope{
		ID:      ev.ID,
		TaskID:  ev.TaskID,
		Kind:    string(ev.Kind),
		At:      ev.At.UTC().Format(time.RFC3339),
		ActorID: ev.ActorID,
		Meta:    meta,
	}
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type Relay struct {
	Store     Store
	Sinks     []Sink
	Interval  time.Duration
	BatchSize int
	Log       *zap.Logger
	Now       func() time.Time
}

// New builds a relay with the sinks named in cfg. It returns nil when no sink is
// configured.
func New(cfg *config.Config, store Store, log *zap.Logger) *Relay {
	if cfg == nil {
		return nil
	}
	var sinks []Sink
	for _, wh := range cfg.Relay.Webhooks {
		sinks = append(sinks, NewWebhookSink(wh.Name, wh.URL, wh.Secret, 0))
	}
	if len(cfg.Relay.Kafka.Brokers) > 0 {
		sinks = append(sinks, NewKafkaSink(cfg.Relay.Kafka.Brokers, cfg.Relay.Kafka.Topic))
	}
	if len(sinks) == 0 {
		return nil
	}
	return &Relay{
		Store:     store,
		Sinks:     sinks,
		Interval:  cfg.Relay.Interval,
		BatchSize: cfg.Relay.BatchSize,
		Log:       log,
	}
}

func (r *Relay) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Relay) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Run flushes every interval until ctx is cancelled, then closes the sinks.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.Close()
	for {
		if err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger().Warn("relay flush", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Flush drains the journal into every sink. Errors from one sink do not stop the
// others.
func (r *Relay) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range r.Sinks {
		if err := r.drain(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Relay) drain(ctx context.Context, s Sink) error {
	batch := r.BatchSize
	if batch <= 0 {
		batch = defaultBatch
	}
	cursor, _, err := r.Store.RelayCursor(ctx, s.Name())
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	for {
		events, err := r.Store.EventsAfter(ctx, batch, cursor)
		if err != nil {
			return fmt.Errorf("fetch events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		n, pubErr := s.Publish(ctx, events)
		if n > 0 {
			metrics.RelayPublished.WithLabelValues(s.Name(), "ok").Add(float64(n))
			cursor = events[n-1].ID
			if err := r.Store.SetRelayCursor(ctx, s.Name(), cursor, r.now()); err != nil {
				return fmt.Errorf("save cursor: %w", err)
			}
		}
		if pubErr != nil {
			metrics.RelayPublished.WithLabelValues(s.Name(), "failed").Inc()
			return pubErr
		}
		if len(events) < batch {
			return nil
		}
	}
}

func (r *Relay) Close() {
	for _, s := range r.Sinks {
		if err := s.Close(); err != nil {
			r.logger().Warn("close sink", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}
