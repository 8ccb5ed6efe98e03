// Package event delivers outbound notifications. Publishing enqueues and
// never fails the caller; listeners hand events to a Notifier, and failed
// deliveries are redelivered by the queue until dead-lettered.
package event

import (
	"time"

	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/internal/idgen"
)

// Topic names a notification kind.
type Topic string

const (
	TopicStepActivated    Topic = "step.activated"
	TopicDecisionRecorded Topic = "decision.recorded"
	TopicInstanceTerminal Topic = "instance.terminal"
	TopicInstanceBlocked  Topic = "instance.blocked"
	TopicRollbackApplied  Topic = "rollback.applied"
)

// Context identifies the entity an event is about.
type Context struct {
	InstanceID   string `json:"instanceId,omitempty"`
	DefinitionID string `json:"definitionId,omitempty"`
	PipelineID   string `json:"pipelineId,omitempty"`
	TaskCode     string `json:"taskCode,omitempty"`
	StepIndex    int    `json:"stepIndex"`
	NodeID       string `json:"nodeId,omitempty"`
	Actor        string `json:"actor,omitempty"`
}

// Event is one outbound notification.
type Event struct {
	ID         string                 `json:"id"`
	Topic      Topic                  `json:"topic"`
	Context    *Context               `json:"context"`
	Recipients []string               `json:"recipients,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// NewEvent creates an event addressed to recipients.
func NewEvent(topic Topic, context *Context, recipients []string, data map[string]interface{}) *Event {
	if context == nil {
		context = &Context{}
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Event{
		ID:         idgen.New(),
		Topic:      topic,
		Context:    context,
		Recipients: recipients,
		Data:       data,
		CreatedAt:  clock.Now(),
	}
}
