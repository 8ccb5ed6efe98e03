package event

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/service/messaging"
	"github.com/viant/approvo/service/messaging/fs"
	"github.com/viant/approvo/service/messaging/memory"
)

// Service owns the notification queue, its publisher and listener.
type Service struct {
	vendor    messaging.Vendor
	memConfig memory.Config
	fsConfig  fs.Config
	fs        afs.Service
	observer  Observer
	workers   int
	queue     messaging.Queue[Event]
	publisher *Publisher
	listener  *Listener
}

// New creates an event service backed by the vendor queue.
func New(vendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		vendor:    vendor,
		memConfig: memory.DefaultConfig(),
		fsConfig:  fs.DefaultConfig(),
		observer:  noopObserver{},
		workers:   1,
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch vendor {
	case messaging.VendorMemory, "":
		ret.queue = memory.NewQueue[Event](ret.memConfig)
	case messaging.VendorFs:
		if ret.fs == nil {
			ret.fs = afs.New()
		}
		queue, err := fs.NewQueue[Event](ret.fs, ret.fsConfig)
		if err != nil {
			return nil, err
		}
		ret.queue = queue
	default:
		return nil, fmt.Errorf("%w: queue vendor %s", errs.ErrUnsupportedBackend, vendor)
	}
	ret.publisher = NewPublisher(ret.queue, ret.observer)
	return ret, nil
}

// Publisher returns the event publisher.
func (s *Service) Publisher() *Publisher { return s.publisher }

// Queue returns the underlying queue.
func (s *Service) Queue() messaging.Queue[Event] { return s.queue }

// Listen starts delivering events to notifier, replacing a previous listener.
func (s *Service) Listen(ctx context.Context, notifier Notifier) {
	s.Stop()
	s.listener = NewListener(s.queue, notifier, s.observer, s.workers)
	s.listener.Start(ctx)
}

// Stop halts the current listener.
func (s *Service) Stop() {
	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}
}
