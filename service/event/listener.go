package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/service/messaging"
	"go.uber.org/zap"
)

const consumeBackoff = 100 * time.Millisecond

// Listener consumes the queue and hands every event to a Notifier. A
// Notifier error Nacks the message so the queue redelivers it.
type Listener struct {
	queue    messaging.Queue[Event]
	notifier Notifier
	observer Observer
	workers  int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewListener creates a listener; it does nothing until Start.
func NewListener(queue messaging.Queue[Event], notifier Notifier, observer Observer, workers int) *Listener {
	if observer == nil {
		observer = noopObserver{}
	}
	if workers <= 0 {
		workers = 1
	}
	return &Listener{queue: queue, notifier: notifier, observer: observer, workers: workers}
}

// Start launches the workers.
func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.run(ctx)
		}()
	}
}

// Stop cancels the workers and waits for in-flight deliveries.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

func (l *Listener) run(ctx context.Context) {
	for {
		message, err := l.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to consume notification", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(consumeBackoff):
			}
			continue
		}
		if message == nil {
			continue
		}
		l.deliver(ctx, message)
	}
}

func (l *Listener) deliver(ctx context.Context, message messaging.Message[Event]) {
	e := message.T()
	err := l.notify(ctx, e)
	if err == nil {
		l.observer.Delivered(e.Topic)
		if ackErr := message.Ack(); ackErr != nil {
			logger.Warn("failed to ack notification", zap.String("id", e.ID), zap.Error(ackErr))
		}
		return
	}
	l.observer.Failed(e.Topic, message.Attempt())
	logger.Warn("notification delivery failed",
		zap.String("topic", string(e.Topic)),
		zap.String("id", e.ID),
		zap.Int("attempt", message.Attempt()),
		zap.Error(err))
	if nackErr := message.Nack(err); nackErr != nil {
		logger.Error("failed to nack notification", zap.String("id", e.ID), zap.Error(nackErr))
	}
}

func (l *Listener) notify(ctx context.Context, e *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return l.notifier.Notify(ctx, e)
}

type panicError struct{ value interface{} }

func (p *panicError) Error() string { return "notifier panic: " + fmt.Sprint(p.value) }
