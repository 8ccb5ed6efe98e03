package definition

import (
	"github.com/viant/afs"
	"github.com/viant/approvo/service/locker"
)

// Option configures the definition store.
type Option func(s *Service)

// WithLocker serializes per-id operations across processes.
func WithLocker(l locker.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithFs sets the afs service used by Load.
func WithFs(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}
