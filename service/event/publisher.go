package event

import (
	"context"

	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/service/messaging"
	"go.uber.org/zap"
)

// Publisher enqueues events without ever failing the caller.
type Publisher struct {
	queue    messaging.Queue[Event]
	observer Observer
}

// NewPublisher creates a publisher over queue.
func NewPublisher(queue messaging.Queue[Event], observer Observer) *Publisher {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Publisher{queue: queue, observer: observer}
}

// Publish enqueues events; enqueue failures are logged and counted.
func (p *Publisher) Publish(ctx context.Context, events ...*Event) {
	for _, e := range events {
		if e == nil {
			continue
		}
		if err := p.queue.Publish(context.WithoutCancel(ctx), e); err != nil {
			p.observer.Dropped(e.Topic)
			logger.Error("failed to enqueue notification",
				zap.String("topic", string(e.Topic)),
				zap.String("id", e.ID),
				zap.Error(err))
			continue
		}
		p.observer.Published(e.Topic)
	}
}
