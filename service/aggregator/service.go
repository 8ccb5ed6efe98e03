// Package aggregator applies approver decisions to a step under its
// consensus policy.
package aggregator

import (
	"fmt"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
)

// StepOutcome describes the effect of one decision.
type StepOutcome struct {
	InstanceID string              `json:"instanceId"`
	StepIndex  int                 `json:"stepIndex"`
	NodeID     string              `json:"nodeId"`
	ApproverID string              `json:"approverId"`
	Verdict    instance.Verdict    `json:"verdict"`
	StepStatus instance.StepStatus `json:"stepStatus"`
	// Resolved is set when the decision resolved the step.
	Resolved bool `json:"resolved"`
	// Duplicate is set when the approver had already decided; nothing changed.
	Duplicate bool               `json:"duplicate,omitempty"`
	Decision  *instance.Decision `json:"decision,omitempty"`
}

// Decide records a decision. Checks run in order: step in range, approver
// on the step, prior decision, step active, sequential turn. A repeated
// decision returns the outcome flagged Duplicate with an
// *errs.DuplicateDecisionError.
func Decide(inst *instance.Instance, stepIndex int, approverID string, verdict instance.Verdict, comment string) (*StepOutcome, error) {
	step := inst.Step(stepIndex)
	if step == nil {
		issues := errs.NewValidationError()
		issues.Add("stepIndex", "step %d is out of range", stepIndex)
		return nil, issues
	}
	if !verdict.Valid() {
		issues := errs.NewValidationError()
		issues.Add("decision", "unsupported decision %q", verdict)
		return nil, issues
	}
	approver := step.Approver(approverID)
	if approver == nil {
		return nil, &errs.ForbiddenError{Actor: approverID, Action: fmt.Sprintf("decide on step %d of instance %s", stepIndex, inst.ID)}
	}
	outcome := &StepOutcome{
		InstanceID: inst.ID,
		StepIndex:  stepIndex,
		NodeID:     step.NodeID,
		ApproverID: approverID,
		Verdict:    verdict,
	}
	if approver.Status == instance.ApproverApproved || approver.Status == instance.ApproverRejected {
		outcome.Duplicate = true
		outcome.StepStatus = step.Status
		outcome.Verdict = verdictOf(approver.Status)
		return outcome, &errs.DuplicateDecisionError{StepIndex: stepIndex, ApproverID: approverID}
	}
	if !inst.IsPending() {
		return nil, &errs.StateError{Entity: "instance " + inst.ID, State: string(inst.Status), Action: "decide"}
	}
	if step.Status != instance.StepActive || inst.CurrentStep != stepIndex {
		return nil, &errs.StateError{Entity: fmt.Sprintf("step %d", stepIndex), State: string(step.Status), Action: "decide"}
	}
	if step.Policy == flow.PolicySequential && !step.Eligible(approverID) {
		expected := ""
		if step.Turn < len(step.Approvers) {
			expected = step.Approvers[step.Turn].UserID
		}
		return nil, &errs.OutOfTurnError{StepIndex: stepIndex, ApproverID: approverID, Expected: expected}
	}

	now := clock.Now()
	approver.DecidedAt = &now
	approver.Comment = comment
	if verdict == instance.VerdictApprove {
		approver.Status = instance.ApproverApproved
	} else {
		approver.Status = instance.ApproverRejected
	}
	if status, resolved := aggregate(step, verdict); resolved {
		step.Resolve(status, now)
		outcome.Resolved = true
	}
	outcome.StepStatus = step.Status
	outcome.Decision = &instance.Decision{
		StepIndex:  stepIndex,
		NodeID:     step.NodeID,
		ApproverID: approverID,
		Verdict:    verdict,
		Comment:    comment,
		DecidedAt:  now,
		Resolved:   outcome.Resolved,
	}
	inst.Record(outcome.Decision)
	return outcome, nil
}

// aggregate returns the step status implied by the latest verdict.
func aggregate(step *instance.Step, verdict instance.Verdict) (instance.StepStatus, bool) {
	if verdict == instance.VerdictReject {
		return instance.StepRejected, true
	}
	switch step.Policy {
	case flow.PolicyAny:
		return instance.StepApproved, true
	case flow.PolicySequential:
		step.Turn++
		if step.Turn >= len(step.Approvers) {
			return instance.StepApproved, true
		}
		return "", false
	}
	if len(step.Outstanding()) == 0 {
		return instance.StepApproved, true
	}
	return "", false
}

func verdictOf(status instance.ApproverStatus) instance.Verdict {
	if status == instance.ApproverRejected {
		return instance.VerdictReject
	}
	return instance.VerdictApprove
}
