package approvo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/metrics"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/rest"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/approval"
	"github.com/viant/approvo/service/dao"
	dfs "github.com/viant/approvo/service/dao/fs"
	dredis "github.com/viant/approvo/service/dao/redis"
	"github.com/viant/approvo/service/dao/store"
	"github.com/viant/approvo/service/definition"
	"github.com/viant/approvo/service/directory"
	"github.com/viant/approvo/service/event"
	"github.com/viant/approvo/service/locker"
	mfs "github.com/viant/approvo/service/messaging/fs"
	"github.com/viant/approvo/service/messaging/memory"
	"github.com/viant/approvo/service/resolver"
	"github.com/viant/approvo/service/rollback"
	"github.com/viant/approvo/tracing"
	"go.uber.org/zap"
)

// Name and Version identify the service in traces.
const (
	Name    = "approvo"
	Version = "0.1.0"
)

// Service wires the engine, its stores, notifications and HTTP surface from a Config.
type Service struct {
	config      *Config
	fs          afs.Service
	directory   directory.Directory
	notifier    event.Notifier
	registry    *prometheus.Registry
	tracing     bool
	tracingErr  error
	client      rd.UniversalClient
	locker      locker.Locker
	recorder    *metrics.Recorder
	definitions *definition.Service
	events      *event.Service
	engine      *approval.Service

	mux      sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan error
}

type stores struct {
	definitions dao.Service[string, model.Definition]
	instances   dao.Service[string, instance.Instance]
	pipelines   dao.Service[string, pipeline.Pipeline]
	templates   dao.Service[string, pipeline.Template]
}

// New creates a service; nothing is served until Start.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(context.Background()); err != nil {
		ret.closeClient()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) error {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.config.Log.Level != "" {
		if err := logger.Init(s.config.Log); err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
	}
	if s.tracingErr != nil {
		return fmt.Errorf("failed to init tracing: %w", s.tracingErr)
	}
	if !s.tracing && s.config.Tracing.Enabled {
		if err := tracing.Init(Name, Version, s.config.Tracing.Output); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		s.tracing = true
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.notifier == nil {
		s.notifier = event.LogNotifier{}
	}
	s.recorder = metrics.NewRecorder(s.registry)
	if err := s.initDirectory(ctx); err != nil {
		return err
	}
	backends, err := s.initStores()
	if err != nil {
		return err
	}
	if err = s.initEvents(); err != nil {
		return err
	}
	s.definitions = definition.New(backends.definitions, definition.WithLocker(s.locker), definition.WithFs(s.fs))
	var resolverOptions []resolver.Option
	if timeout := s.config.Engine.LookupTimeout; timeout > 0 {
		resolverOptions = append(resolverOptions, resolver.WithLookupTimeout(timeout))
	}
	s.engine = approval.New(s.definitions, s.directory,
		approval.WithInstances(backends.instances),
		approval.WithPipelines(backends.pipelines),
		approval.WithTemplates(backends.templates),
		approval.WithLocker(s.locker),
		approval.WithPublisher(s.events.Publisher()),
		approval.WithMetrics(s.recorder),
		approval.WithResolverOptions(resolverOptions...))
	logger.Info("approval engine initialized",
		zap.String("store", s.config.Store.Backend),
		zap.String("queue", string(s.config.Events.Queue)))
	return nil
}

func (s *Service) initDirectory(ctx context.Context) error {
	if s.directory == nil {
		if URL := s.config.Directory.URL; URL != "" {
			dir, err := directory.Load(ctx, s.fs, URL)
			if err != nil {
				return err
			}
			s.directory = dir
		} else {
			s.directory = directory.NewMemory(nil)
		}
	}
	if ttl := s.config.Directory.CacheTTL; ttl > 0 {
		s.directory = directory.NewCached(s.directory, ttl)
	}
	return nil
}

func (s *Service) initStores() (*stores, error) {
	conf := s.config.Store
	switch conf.Backend {
	case BackendMemory, "":
		s.locker = locker.NewMemory()
		return &stores{
			definitions: store.NewMemoryStore[string, model.Definition](definition.Key,
				store.WithClone[string, model.Definition](definition.Clone),
				store.WithFilter[string, model.Definition](definition.Filter)),
			instances: store.NewMemoryStore[string, instance.Instance](approval.InstanceKey,
				store.WithClone[string, instance.Instance](approval.InstanceClone),
				store.WithFilter[string, instance.Instance](approval.InstanceFilter)),
			pipelines: store.NewMemoryStore[string, pipeline.Pipeline](approval.PipelineKey,
				store.WithClone[string, pipeline.Pipeline](approval.PipelineClone),
				store.WithFilter[string, pipeline.Pipeline](approval.PipelineFilter)),
			templates: store.NewMemoryStore[string, pipeline.Template](approval.TemplateKey,
				store.WithClone[string, pipeline.Template](approval.TemplateClone)),
		}, nil
	case BackendFs:
		s.locker = locker.NewMemory()
		ret := &stores{}
		var err error
		if ret.definitions, err = dfs.New[model.Definition](url.Join(conf.BasePath, "definitions"), definition.Key,
			dfs.WithFs[model.Definition](s.fs), dfs.WithFilter[model.Definition](definition.Filter)); err != nil {
			return nil, err
		}
		if ret.instances, err = dfs.New[instance.Instance](url.Join(conf.BasePath, "instances"), approval.InstanceKey,
			dfs.WithFs[instance.Instance](s.fs), dfs.WithFilter[instance.Instance](approval.InstanceFilter)); err != nil {
			return nil, err
		}
		if ret.pipelines, err = dfs.New[pipeline.Pipeline](url.Join(conf.BasePath, "pipelines"), approval.PipelineKey,
			dfs.WithFs[pipeline.Pipeline](s.fs), dfs.WithFilter[pipeline.Pipeline](approval.PipelineFilter)); err != nil {
			return nil, err
		}
		if ret.templates, err = dfs.New[pipeline.Template](url.Join(conf.BasePath, "templates"), approval.TemplateKey,
			dfs.WithFs[pipeline.Template](s.fs)); err != nil {
			return nil, err
		}
		return ret, nil
	case BackendRedis:
		s.client = dredis.NewClient(conf.Redis)
		namespace := conf.Redis.Namespace
		s.locker = locker.NewRedis(s.client, namespace, conf.Lock)
		return &stores{
			definitions: dredis.New[model.Definition](s.client, namespace, "definition", definition.Key,
				dredis.WithFilter[model.Definition](definition.Filter)),
			instances: dredis.New[instance.Instance](s.client, namespace, "instance", approval.InstanceKey,
				dredis.WithFilter[instance.Instance](approval.InstanceFilter)),
			pipelines: dredis.New[pipeline.Pipeline](s.client, namespace, "pipeline", approval.PipelineKey,
				dredis.WithFilter[pipeline.Pipeline](approval.PipelineFilter)),
			templates: dredis.New[pipeline.Template](s.client, namespace, "template", approval.TemplateKey),
		}, nil
	}
	return nil, fmt.Errorf("%w: store backend %s", errs.ErrUnsupportedBackend, conf.Backend)
}

func (s *Service) initEvents() error {
	conf := s.config.Events
	memConfig := memory.DefaultConfig()
	memConfig.MaxRetries = conf.MaxRetries
	if conf.RetryDelay > 0 {
		memConfig.RetryDelay = conf.RetryDelay
	}
	if conf.Buffer > 0 {
		memConfig.QueueBuffer = conf.Buffer
	}
	fsConfig := mfs.DefaultConfig()
	fsConfig.MaxRetries = conf.MaxRetries
	if conf.RetryDelay > 0 {
		fsConfig.RetryDelay = conf.RetryDelay
	}
	if conf.BasePath != "" {
		fsConfig.BasePath = conf.BasePath
	}
	var err error
	s.events, err = event.New(conf.Queue,
		event.WithMemoryConfig(memConfig),
		event.WithFsConfig(fsConfig),
		event.WithFs(s.fs),
		event.WithObserver(s.recorder),
		event.WithWorkers(conf.Workers))
	return err
}

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Engine returns the approval engine.
func (s *Service) Engine() *approval.Service { return s.engine }

// Definitions returns the definition store.
func (s *Service) Definitions() *definition.Service { return s.definitions }

// Events returns the notification service.
func (s *Service) Events() *event.Service { return s.events }

// Registry returns the metrics registry.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

// Handler returns the REST handler including /metrics.
func (s *Service) Handler() http.Handler {
	return rest.New(s.engine, rest.WithMetricsHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// Bootstrap imports and publishes the configured definitions and registers
// the configured pipeline templates.
func (s *Service) Bootstrap(ctx context.Context) error {
	for _, URL := range s.config.Definitions {
		def, err := s.definitions.Import(ctx, URL, true)
		if err != nil {
			return fmt.Errorf("failed to import definition %s: %w", URL, err)
		}
		logger.Info("definition imported", zap.String("definition", def.ID), zap.Int("version", def.Version))
	}
	for _, URL := range s.config.Templates {
		template, err := rollback.LoadTemplate(ctx, s.fs, URL)
		if err != nil {
			return err
		}
		if _, err = s.engine.RegisterTemplate(ctx, template); err != nil {
			return fmt.Errorf("failed to register template %s: %w", URL, err)
		}
	}
	return nil
}

// Start begins notification delivery and serves the REST API on HTTP.Addr.
func (s *Service) Start(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.server != nil {
		return &errs.StateError{Entity: "service", State: "running", Action: "start"}
	}
	listener, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.HTTP.Addr, err)
	}
	s.events.Listen(ctx, s.notifier)
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.done = make(chan error, 1)
	go func(server *http.Server, done chan error) {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}(s.server, s.done)
	logger.Info("http server started", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Service) Addr() string {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done reports the serve loop exit; nil before Start.
func (s *Service) Done() <-chan error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.done
}

// Stop shuts down the HTTP server, notification delivery and tracing.
func (s *Service) Stop(ctx context.Context) error {
	s.mux.Lock()
	server := s.server
	s.server, s.listener = nil, nil
	s.mux.Unlock()
	var err error
	if server != nil {
		logger.Info("shutting down http server")
		err = server.Shutdown(ctx)
	}
	s.events.Stop()
	if s.tracing {
		if tErr := tracing.Shutdown(ctx); tErr != nil && err == nil {
			err = tErr
		}
	}
	s.closeClient()
	_ = logger.Sync()
	return err
}

func (s *Service) closeClient() {
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
}
