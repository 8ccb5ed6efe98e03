package approval

import (
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/rollback"
)

// SubmitRequest starts a new instance of a published definition.
type SubmitRequest struct {
	DefinitionID string `json:"definitionId"`
	// Version pins a published version; 0 selects the current one.
	Version      int                    `json:"version,omitempty"`
	SubmittedBy  string                 `json:"submittedBy"`
	DepartmentID string                 `json:"departmentId,omitempty"`
	FormData     map[string]interface{} `json:"formData"`
	// SelfSelected maps selfSelect node ids onto chosen approvers.
	SelfSelected map[string][]string     `json:"selfSelected,omitempty"`
	Review       *instance.ReviewBinding `json:"review,omitempty"`
}

func (r *SubmitRequest) validate() error {
	issues := errs.NewValidationError()
	if r.DefinitionID == "" {
		issues.Add("definitionId", "is required")
	}
	if r.SubmittedBy == "" {
		issues.Add("submittedBy", "is required")
	}
	if r.Version < 0 {
		issues.Add("version", "must not be negative")
	}
	if review := r.Review; review != nil {
		if review.PipelineID == "" {
			issues.Add("review.pipelineId", "is required")
		}
		if review.TaskCode == "" {
			issues.Add("review.taskCode", "is required")
		}
		if review.OnApproved == "" && review.OnRejected == "" {
			issues.Add("review.onApproved", "at least one outcome mapping is required")
		}
	}
	return issues.OrNil()
}

// DecideRequest records one approver decision.
type DecideRequest struct {
	InstanceID string           `json:"instanceId"`
	StepIndex  int              `json:"stepIndex"`
	ApproverID string           `json:"approverId"`
	Decision   instance.Verdict `json:"decision"`
	Comment    string           `json:"comment,omitempty"`
}

func (r *DecideRequest) validate() error {
	issues := errs.NewValidationError()
	if r.InstanceID == "" {
		issues.Add("instanceId", "is required")
	}
	if r.ApproverID == "" {
		issues.Add("approverId", "is required")
	}
	return issues.OrNil()
}

// OutcomeRequest selects a review outcome of a pipeline task.
type OutcomeRequest struct {
	PipelineID  string `json:"pipelineId"`
	TaskCode    string `json:"taskCode"`
	OutcomeCode string `json:"outcomeCode"`
	By          string `json:"by,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// PipelineChange pairs the saved pipeline with the effect of the operation.
type PipelineChange struct {
	Pipeline *pipeline.Pipeline `json:"pipeline"`
	Result   *rollback.Result   `json:"result"`
}
