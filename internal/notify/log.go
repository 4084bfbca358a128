package notify

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log instead of delivering them. It is used
// for dry runs and when no gateway is configured.
type LogNotifier struct {
	Log *zap.Logger
	seq atomic.Int64
}

func (l *LogNotifier) logger() *zap.Logger {
	if l.Log == nil {
		return zap.L()
	}
	return l.Log
}

func (l *LogNotifier) Send(_ context.Context, to Recipient, msg Message) (Handle, error) {
	h := Handle(fmt.Sprintf("log-%d", l.seq.Add(1)))
	l.logger().Info("notify",
		zap.String("recipient", to.UserID),
		zap.String("kind", msg.Kind),
		zap.String("task_id", msg.TaskID),
		zap.String("handle", string(h)),
		zap.Int("actions", len(msg.Actions)),
		zap.String("text", msg.Text),
	)
	return h, nil
}

func (l *LogNotifier) EditOrAppend(ctx context.Context, to Recipient, h Handle, msg Message) (Handle, error) {
	if h == "" {
		return l.Send(ctx, to, msg)
	}
	l.logger().Info("notify edit",
		zap.String("recipient", to.UserID),
		zap.String("kind", msg.Kind),
		zap.String("handle", string(h)),
		zap.String("text", msg.Text),
	)
	return h, nil
}
