package event

import (
	"context"
	"strings"

	"github.com/viant/approvo/logger"
	"go.uber.org/zap"
)

// Notifier delivers an event to its recipients (mail, chat, webhook).
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event *Event) error

func (f NotifierFunc) Notify(ctx context.Context, event *Event) error { return f(ctx, event) }

// LogNotifier writes events to the log; it is the daemon default.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event *Event) error {
	logger.Info("notification",
		zap.String("topic", string(event.Topic)),
		zap.String("id", event.ID),
		zap.String("instance", event.Context.InstanceID),
		zap.String("pipeline", event.Context.PipelineID),
		zap.String("recipients", strings.Join(event.Recipients, ",")))
	return nil
}

// Observer receives delivery statistics.
type Observer interface {
	Published(topic Topic)
	Dropped(topic Topic)
	Delivered(topic Topic)
	Failed(topic Topic, attempt int)
}

type noopObserver struct{}

func (noopObserver) Published(Topic)   {}
func (noopObserver) Dropped(Topic)     {}
func (noopObserver) Delivered(Topic)   {}
func (noopObserver) Failed(Topic, int) {}
