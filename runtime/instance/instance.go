// Package instance holds the runtime state of an approval process
// compiled from a definition version.
package instance

import (
	"encoding/json"
	"time"

	"github.com/viant/approvo/model"
)

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Context captures submission facts used for approver resolution.
type Context struct {
	SubmitterID  string              `json:"submitterId"`
	DepartmentID string              `json:"departmentId,omitempty"`
	SelfSelected map[string][]string `json:"selfSelected,omitempty"`
}

// Blocked describes a pending instance whose current step could not be activated.
type Blocked struct {
	StepIndex int       `json:"stepIndex"`
	NodeID    string    `json:"nodeId"`
	Reason    string    `json:"reason"`
	Since     time.Time `json:"since"`
	Attempts  int       `json:"attempts"`
}

// ReviewBinding maps the terminal status of an instance onto a pipeline
// task outcome.
type ReviewBinding struct {
	PipelineID string `json:"pipelineId"`
	TaskCode   string `json:"taskCode"`
	OnApproved string `json:"onApproved"`
	OnRejected string `json:"onRejected"`
	Applied    bool   `json:"applied,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OutcomeFor returns the outcome code mapped to a terminal status.
func (b *ReviewBinding) OutcomeFor(status Status) string {
	switch status {
	case StatusApproved:
		return b.OnApproved
	case StatusRejected:
		return b.OnRejected
	}
	return ""
}

// Instance is one execution of a definition version.
type Instance struct {
	ID                string                 `json:"id"`
	DefinitionID      string                 `json:"definitionId"`
	DefinitionVersion int                    `json:"definitionVersion"`
	Definition        *model.Definition      `json:"definition"`
	FormData          map[string]interface{} `json:"formData"`
	SubmittedBy       string                 `json:"submittedBy"`
	Context           Context                `json:"context"`
	CurrentStep       int                    `json:"currentStep"`
	Steps             []*Step                `json:"steps"`
	Status            Status                 `json:"status"`
	Blocked           *Blocked               `json:"blocked,omitempty"`
	Decisions         []*Decision            `json:"decisions,omitempty"`
	Review            *ReviewBinding         `json:"review,omitempty"`
	Revision          int                    `json:"revision"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	CompletedAt       *time.Time             `json:"completedAt,omitempty"`
}

// IsPending reports whether the instance still accepts mutations.
func (i *Instance) IsPending() bool {
	return i.Status == StatusPending
}

// Step returns a step by index or nil when out of range.
func (i *Instance) Step(index int) *Step {
	if index < 0 || index >= len(i.Steps) {
		return nil
	}
	return i.Steps[index]
}

// ActiveStep returns the current step when it is active.
func (i *Instance) ActiveStep() *Step {
	step := i.Step(i.CurrentStep)
	if step == nil || step.Status != StepActive {
		return nil
	}
	return step
}

// AwaitsDecisionFrom reports whether approverID may decide on the current step now.
func (i *Instance) AwaitsDecisionFrom(approverID string) bool {
	if !i.IsPending() {
		return false
	}
	step := i.ActiveStep()
	if step == nil {
		return false
	}
	return step.Eligible(approverID)
}

// Complete moves the instance to a terminal status.
func (i *Instance) Complete(status Status, at time.Time) {
	i.Status = status
	i.Blocked = nil
	i.CompletedAt = &at
	i.UpdatedAt = at
}

// Record appends a decision to the audit trail.
func (i *Instance) Record(decision *Decision) {
	i.Decisions = append(i.Decisions, decision)
}

// Touch bumps the revision ahead of a save.
func (i *Instance) Touch(at time.Time) {
	i.Revision++
	i.UpdatedAt = at
}

// Clone returns a deep copy.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	data, err := json.Marshal(i)
	if err != nil {
		return nil
	}
	ret := &Instance{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil
	}
	return ret
}
