// Package metrics records engine activity as Prometheus metrics on a
// caller supplied registry. A nil *Recorder records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/service/event"
)

// Namespace prefixes every metric name.
const Namespace = "approvo"

// Recorder holds the engine collectors.
type Recorder struct {
	submitted     *prometheus.CounterVec
	completed     *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	blocked       *prometheus.CounterVec
	resolution    *prometheus.HistogramVec
	operations    *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
}

// NewRecorder registers the collectors on registry.
func NewRecorder(registry prometheus.Registerer) *Recorder {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &Recorder{
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "instances_submitted_total",
			Help: "Submitted instances by definition.",
		}, []string{"definition"}),
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "instances_completed_total",
			Help: "Instances reaching a terminal status.",
		}, []string{"status"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "decisions_total",
			Help: "Approver decisions by verdict and result.",
		}, []string{"verdict", "result"}),
		blocked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "steps_blocked_total",
			Help: "Step activations blocked on unresolved approvers.",
		}, []string{"approver_type"}),
		resolution: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Name: "approver_resolution_seconds",
			Help:    "Approver resolution latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"approver_type", "result"}),
		operations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Name: "operation_seconds",
			Help:    "Engine operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "notifications_total",
			Help: "Notifications by topic and delivery result.",
		}, []string{"topic", "result"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "pipeline_outcomes_total",
			Help: "Review outcomes applied to pipeline tasks.",
		}, []string{"type"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Submitted counts a new instance.
func (r *Recorder) Submitted(definitionID string) {
	if r == nil {
		return
	}
	r.submitted.WithLabelValues(definitionID).Inc()
}

// Completed counts an instance reaching status.
func (r *Recorder) Completed(status string) {
	if r == nil {
		return
	}
	r.completed.WithLabelValues(status).Inc()
}

// Decision counts a decision; result is accepted, duplicate or refused.
func (r *Recorder) Decision(verdict, result string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(verdict, result).Inc()
}

// Blocked counts a blocked step activation.
func (r *Recorder) Blocked(approverType flow.ApproverType) {
	if r == nil {
		return
	}
	r.blocked.WithLabelValues(string(approverType)).Inc()
}

// Resolution observes approver resolution latency.
func (r *Recorder) Resolution(approverType flow.ApproverType, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.resolution.WithLabelValues(string(approverType), result(err)).Observe(took.Seconds())
}

// Operation observes an engine operation started at started.
func (r *Recorder) Operation(operation string, started time.Time, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, result(err)).Observe(time.Since(started).Seconds())
}

// Outcome counts a pipeline review outcome.
func (r *Recorder) Outcome(outcomeType string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(outcomeType).Inc()
}

func (r *Recorder) notification(topic event.Topic, result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(string(topic), result).Inc()
}

func (r *Recorder) Published(topic event.Topic) { r.notification(topic, "published") }
func (r *Recorder) Dropped(topic event.Topic)   { r.notification(topic, "dropped") }
func (r *Recorder) Delivered(topic event.Topic) { r.notification(topic, "delivered") }

func (r *Recorder) Failed(topic event.Topic, attempt int) {
	r.notification(topic, "failed_attempt_"+strconv.Itoa(min(attempt, 5)))
}

var _ event.Observer = (*Recorder)(nil)
