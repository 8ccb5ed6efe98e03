// Package rest exposes the approval engine over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/aggregator"
	"github.com/viant/approvo/service/approval"
	"github.com/viant/approvo/tracing"
	"go.uber.org/zap"
)

// Engine is the inbound API served over HTTP.
type Engine interface {
	CreateDraft(ctx context.Context, def *model.Definition) (*model.Definition, error)
	Publish(ctx context.Context, id string, version int) (*model.Definition, error)
	Unpublish(ctx context.Context, id string) (*model.Definition, error)
	Definition(ctx context.Context, id string, version int) (*model.Definition, error)
	Submit(ctx context.Context, request *approval.SubmitRequest) (*instance.Instance, error)
	Decide(ctx context.Context, request *approval.DecideRequest) (*aggregator.StepOutcome, error)
	Cancel(ctx context.Context, instanceID, by string) (*instance.Instance, error)
	Retry(ctx context.Context, instanceID string) (*instance.Instance, error)
	Assign(ctx context.Context, instanceID string, stepIndex int, approverIDs []string) (*instance.Instance, error)
	Instance(ctx context.Context, id string) (*instance.Instance, error)
	ListPending(ctx context.Context, approverID string) ([]*instance.Instance, error)
	RegisterTemplate(ctx context.Context, template *pipeline.Template) (*pipeline.Template, error)
	StartPipeline(ctx context.Context, templateID, pipelineID string) (*pipeline.Pipeline, error)
	Pipeline(ctx context.Context, id string) (*pipeline.Pipeline, error)
	CompleteTask(ctx context.Context, pipelineID, taskCode, by string) (*approval.PipelineChange, error)
	SelectOutcome(ctx context.Context, request *approval.OutcomeRequest) (*approval.PipelineChange, error)
	ReopenTask(ctx context.Context, pipelineID, taskCode, by string) (*approval.PipelineChange, error)
	AttachWorkProduct(ctx context.Context, pipelineID, taskCode, productID string) (*approval.PipelineChange, error)
}

// Option customizes the handler.
type Option func(h *Handler)

// WithMetricsHandler serves handler under /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(h *Handler) { h.metrics = handler }
}

// Handler routes API requests to the engine.
type Handler struct {
	engine  Engine
	router  *mux.Router
	metrics http.Handler
}

// New creates the API handler.
func New(engine Engine, options ...Option) *Handler {
	ret := &Handler{engine: engine, router: mux.NewRouter()}
	for _, option := range options {
		option(ret)
	}
	ret.routes()
	return ret
}

func (h *Handler) routes() {
	h.router.Use(tracingMiddleware, loggingMiddleware)
	h.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &Response{Data: "ok"})
	}).Methods(http.MethodGet)
	if h.metrics != nil {
		h.router.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	v1 := h.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/definitions", h.createDraft).Methods(http.MethodPost)
	v1.HandleFunc("/definitions/{id}", h.getDefinition).Methods(http.MethodGet)
	v1.HandleFunc("/definitions/{id}/versions/{version}/publish", h.publish).Methods(http.MethodPost)
	v1.HandleFunc("/definitions/{id}/unpublish", h.unpublish).Methods(http.MethodPost)

	v1.HandleFunc("/instances", h.submit).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}", h.getInstance).Methods(http.MethodGet)
	v1.HandleFunc("/instances/{id}/steps/{step}/decisions", h.decide).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/steps/{step}/approvers", h.assign).Methods(http.MethodPut)
	v1.HandleFunc("/instances/{id}/cancel", h.cancel).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/retry", h.retry).Methods(http.MethodPost)
	v1.HandleFunc("/approvers/{approverId}/pending", h.listPending).Methods(http.MethodGet)

	v1.HandleFunc("/templates", h.registerTemplate).Methods(http.MethodPost)
	v1.HandleFunc("/pipelines", h.startPipeline).Methods(http.MethodPost)
	v1.HandleFunc("/pipelines/{id}", h.getPipeline).Methods(http.MethodGet)
	v1.HandleFunc("/pipelines/{id}/tasks/{code}/complete", h.completeTask).Methods(http.MethodPost)
	v1.HandleFunc("/pipelines/{id}/tasks/{code}/outcome", h.selectOutcome).Methods(http.MethodPost)
	v1.HandleFunc("/pipelines/{id}/tasks/{code}/reopen", h.reopenTask).Methods(http.MethodPost)
	v1.HandleFunc("/pipelines/{id}/tasks/{code}/workproducts", h.attachWorkProduct).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// statusRecorder captures the response status for logging and tracing.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.Method + " " + r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				name = r.Method + " " + template
			}
		}
		ctx, span := tracing.StartSpan(r.Context(), name, tracing.KindServer)
		defer span.End()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetStatusFromHTTPCode(recorder.status)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("took", time.Since(started)),
		}
		if traceID := tracing.TraceID(r.Context()); traceID != "" {
			fields = append(fields, zap.String("traceId", traceID))
		}
		logger.Debug("http request", fields...)
	})
}
