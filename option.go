package approvo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/approvo/service/directory"
	"github.com/viant/approvo/service/event"
	"github.com/viant/approvo/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customizes the service.
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps DefaultConfig.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithDirectory sets the organizational directory, overriding Directory.URL.
func WithDirectory(dir directory.Directory) Option {
	return func(s *Service) { s.directory = dir }
}

// WithNotifier sets the notification channel; events are logged by default.
func WithNotifier(notifier event.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithRegistry sets the prometheus registry served on /metrics.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Service) { s.registry = registry }
}

// WithFs sets the afs service used for file backends and document loading.
func WithFs(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.tracingErr = tracing.Init(serviceName, serviceVersion, outputFile)
		s.tracing = true
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for
// example OTLP, Jaeger or an in-memory exporter in tests.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.tracingErr = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
		s.tracing = true
	}
}
