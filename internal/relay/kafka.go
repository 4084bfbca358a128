package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"remindline/internal/domain"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events keyed by task id, so one task's history stays on
// one partition and in order.
type KafkaSink struct {
	Topic  string
	Writer MessageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{Topic: topic, Writer: w}
}

func (k *KafkaSink) Name() string { return "kafka:" + k.Topic }

// Publish writes the batch in one call. kafka-go does not report partial success
// for a synchronous batch, so it is all or nothing.
func (k *KafkaSink) Publish(ctx context.Context, events []domain.TaskEvent) (int, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		env := NewEnvelope(ev)
		value, err := env.Marshal()
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.TaskID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(env.Kind)},
				{Key: "event_id", Value: []byte(fmt.Sprintf("%d", ev.ID))},
			},
			Time: ev.At,
		})
	}
	if err := k.Writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("kafka publish to %s: %w", k.Topic, err)
	}
	return len(events), nil
}

func (k *KafkaSink) Close() error {
	return k.Writer.Close()
}
