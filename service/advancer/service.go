// Package advancer moves an instance through its steps: activating steps,
// completing the instance and handling cancellation and blocked steps.
package advancer

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
)

// Resolver computes the approvers of a node.
type Resolver interface {
	Resolve(ctx context.Context, node *flow.Approve, ictx *instance.Context) ([]string, error)
}

// Transition reports what a call changed.
type Transition struct {
	// Activated is the step that became active, if any.
	Activated *instance.Step
	// Blocked is set when the step to activate could not be resolved.
	Blocked *instance.Blocked
	// Completed is the terminal status reached, empty otherwise.
	Completed instance.Status
}

// Service advances instances.
type Service struct {
	resolver Resolver
}

// New creates an advancer.
func New(resolver Resolver) *Service {
	return &Service{resolver: resolver}
}

func approveNode(inst *instance.Instance, step *instance.Step) (*flow.Approve, error) {
	if inst.Definition == nil {
		return nil, fmt.Errorf("instance %s has no definition", inst.ID)
	}
	node, ok := inst.Definition.Flow.Lookup(step.NodeID).(*flow.Approve)
	if !ok || node == nil {
		return nil, fmt.Errorf("instance %s: approve node %s not found", inst.ID, step.NodeID)
	}
	return node, nil
}

// Activate resolves the approvers of a step and makes it current. On
// resolution failure the instance is marked blocked and an
// *errs.UnresolvedApproversError is returned together with the transition.
func (s *Service) Activate(ctx context.Context, inst *instance.Instance, stepIndex int) (*Transition, error) {
	if !inst.IsPending() {
		return nil, &errs.StateError{Entity: "instance " + inst.ID, State: string(inst.Status), Action: "activate step"}
	}
	step := inst.Step(stepIndex)
	if step == nil {
		return nil, fmt.Errorf("instance %s: step %d out of range", inst.ID, stepIndex)
	}
	if step.Status != instance.StepPending {
		return nil, &errs.StateError{Entity: fmt.Sprintf("step %d", stepIndex), State: string(step.Status), Action: "activate"}
	}
	node, err := approveNode(inst, step)
	if err != nil {
		return nil, err
	}
	inst.CurrentStep = stepIndex
	approvers, err := s.resolver.Resolve(ctx, node, &inst.Context)
	if err != nil {
		unresolved := &errs.UnresolvedApproversError{}
		if !errors.As(err, &unresolved) {
			unresolved = &errs.UnresolvedApproversError{Cause: err}
		}
		ret := &errs.UnresolvedApproversError{InstanceID: inst.ID, StepIndex: stepIndex, NodeID: step.NodeID, Cause: unresolved.Cause}
		blocked := s.block(inst, step, ret)
		return &Transition{Blocked: blocked}, ret
	}
	s.activate(inst, step, approvers)
	return &Transition{Activated: step}, nil
}

func (s *Service) block(inst *instance.Instance, step *instance.Step, err *errs.UnresolvedApproversError) *instance.Blocked {
	attempts := 1
	if prev := inst.Blocked; prev != nil && prev.StepIndex == step.Index {
		attempts = prev.Attempts + 1
	}
	reason := "unresolved approvers"
	if err.Cause != nil {
		reason = err.Cause.Error()
	}
	inst.Blocked = &instance.Blocked{
		StepIndex: step.Index,
		NodeID:    step.NodeID,
		Reason:    reason,
		Since:     clock.Now(),
		Attempts:  attempts,
	}
	return inst.Blocked
}

func (s *Service) activate(inst *instance.Instance, step *instance.Step, approvers []string) {
	now := clock.Now()
	step.Approvers = make([]*instance.Approver, 0, len(approvers))
	for _, id := range approvers {
		step.Approvers = append(step.Approvers, &instance.Approver{UserID: id, Status: instance.ApproverPending})
	}
	step.Status = instance.StepActive
	step.Turn = 0
	step.StartedAt = &now
	inst.CurrentStep = step.Index
	inst.Blocked = nil
}

// Advance reacts to the resolution of the current step.
func (s *Service) Advance(ctx context.Context, inst *instance.Instance) (*Transition, error) {
	if !inst.IsPending() {
		return nil, &errs.StateError{Entity: "instance " + inst.ID, State: string(inst.Status), Action: "advance"}
	}
	step := inst.Step(inst.CurrentStep)
	if step == nil {
		return nil, fmt.Errorf("instance %s: current step %d out of range", inst.ID, inst.CurrentStep)
	}
	switch step.Status {
	case instance.StepApproved:
		if next := step.Index + 1; next < len(inst.Steps) {
			return s.Activate(ctx, inst, next)
		}
		inst.Complete(instance.StatusApproved, clock.Now())
		return &Transition{Completed: instance.StatusApproved}, nil
	case instance.StepRejected:
		inst.Complete(instance.StatusRejected, clock.Now())
		return &Transition{Completed: instance.StatusRejected}, nil
	}
	return &Transition{}, nil
}

// Cancel withdraws a pending instance. Only the submitter may cancel.
func (s *Service) Cancel(inst *instance.Instance, by string) (*Transition, error) {
	if by != inst.SubmittedBy {
		return nil, &errs.ForbiddenError{Actor: by, Action: "cancel instance " + inst.ID}
	}
	if !inst.IsPending() {
		return nil, &errs.StateError{Entity: "instance " + inst.ID, State: string(inst.Status), Action: "cancel"}
	}
	now := clock.Now()
	if step := inst.ActiveStep(); step != nil {
		step.Resolve(instance.StepSkipped, now)
	}
	if inst.Blocked != nil {
		if step := inst.Step(inst.Blocked.StepIndex); step != nil && step.Status == instance.StepPending {
			step.Resolve(instance.StepSkipped, now)
		}
	}
	inst.Complete(instance.StatusCancelled, now)
	return &Transition{Completed: instance.StatusCancelled}, nil
}

// Retry re-runs approver resolution of the blocked step.
func (s *Service) Retry(ctx context.Context, inst *instance.Instance) (*Transition, error) {
	if !inst.IsPending() {
		return nil, &errs.StateError{Entity: "instance " + inst.ID, State: string(inst.Status), Action: "retry"}
	}
	if inst.Blocked == nil {
		return nil, &errs.StateError{Entity: "instance " + inst.ID, State: "unblocked", Action: "retry"}
	}
	return s.Activate(ctx, inst, inst.Blocked.StepIndex)
}

// Assign activates the blocked step with operator supplied approvers.
func (s *Service) Assign(inst *instance.Instance, stepIndex int, approverIDs []string) (*Transition, error) {
	if !inst.IsPending() {
		return nil, &errs.StateError{Entity: "instance " + inst.ID, State: string(inst.Status), Action: "assign approvers"}
	}
	if inst.Blocked == nil || inst.Blocked.StepIndex != stepIndex {
		return nil, &errs.StateError{Entity: fmt.Sprintf("step %d", stepIndex), State: "unblocked", Action: "assign approvers"}
	}
	step := inst.Step(stepIndex)
	if step == nil {
		return nil, fmt.Errorf("instance %s: step %d out of range", inst.ID, stepIndex)
	}
	var ids []string
	seen := map[string]bool{}
	for _, id := range approverIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		issues := errs.NewValidationError()
		issues.Add("approvers", "at least one approver is required")
		return nil, issues
	}
	s.activate(inst, step, ids)
	return &Transition{Activated: step}, nil
}
