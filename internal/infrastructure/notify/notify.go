// Package notify contains the notification sinks for device change
// messages. Every sink is best-effort: failures are returned as
// notification delivery errors and never retried here.
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"usbspeed/internal/application/monitor"
	"usbspeed/internal/errors"
)

// Message is the structured payload sent to remote sinks.
type Message struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Host  string    `json:"host"`
	At    time.Time `json:"at"`
}

func newMessage(title, body string) Message {
	host, _ := os.Hostname()
	return Message{
		ID:    uuid.NewString(),
		Title: title,
		Body:  body,
		Host:  host,
		At:    time.Now().UTC(),
	}
}

// LogNotifier writes messages to the log. It never fails.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, title, body string) error {
	n.logger.Info(title, zap.String("body", body))
	return nil
}

// Multi fans a message out to several sinks. Every sink is tried; the
// failures are joined into one delivery error.
type Multi struct {
	sinks  []monitor.Notifier
	logger *zap.Logger
}

func NewMulti(logger *zap.Logger, sinks ...monitor.Notifier) *Multi {
	active := make([]monitor.Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Multi{sinks: active, logger: logger.Named("notify")}
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, title, body); err != nil {
			m.logger.Debug("Sink failed",
				zap.String("sink", fmt.Sprintf("%T", sink)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.NewNotificationDelivery(
		fmt.Sprintf("%d of %d sinks failed", len(errs), len(m.sinks)),
		stderrors.Join(errs...))
}
