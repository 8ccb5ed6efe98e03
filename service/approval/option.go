package approval

import (
	"context"

	"github.com/viant/approvo/metrics"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/dao"
	"github.com/viant/approvo/service/event"
	"github.com/viant/approvo/service/locker"
	"github.com/viant/approvo/service/resolver"
)

// Publisher enqueues outbound notifications; it never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, events ...*event.Event)
}

// Option customizes the engine.
type Option func(s *Service)

// WithInstances sets the instance store.
func WithInstances(store dao.Service[string, instance.Instance]) Option {
	return func(s *Service) { s.instances = store }
}

// WithPipelines sets the pipeline store.
func WithPipelines(store dao.Service[string, pipeline.Pipeline]) Option {
	return func(s *Service) { s.pipelines = store }
}

// WithTemplates sets the pipeline template store.
func WithTemplates(store dao.Service[string, pipeline.Template]) Option {
	return func(s *Service) { s.templates = store }
}

// WithLocker sets the per-key locker.
func WithLocker(l locker.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPublisher sets the notification publisher.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = recorder }
}

// WithResolverOptions passes options to the approver resolver.
func WithResolverOptions(options ...resolver.Option) Option {
	return func(s *Service) { s.resolverOptions = append(s.resolverOptions, options...) }
}
