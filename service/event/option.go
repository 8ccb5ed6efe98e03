package event

import (
	"github.com/viant/afs"
	"github.com/viant/approvo/service/messaging/fs"
	"github.com/viant/approvo/service/messaging/memory"
)

// Option configures the event service.
type Option func(s *Service)

// WithMemoryConfig sets the memory queue configuration.
func WithMemoryConfig(config memory.Config) Option {
	return func(s *Service) { s.memConfig = config }
}

// WithFsConfig sets the file system queue configuration.
func WithFsConfig(config fs.Config) Option {
	return func(s *Service) { s.fsConfig = config }
}

// WithFs sets the afs service used by the file system queue.
func WithFs(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithObserver receives delivery statistics.
func WithObserver(observer Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithWorkers sets the number of concurrent deliveries.
func WithWorkers(workers int) Option {
	return func(s *Service) { s.workers = workers }
}
