package aggregator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
)

func activeInstance(policy flow.Policy, approvers ...string) *instance.Instance {
	step := instance.NewStep(0, &flow.Approve{ID: "review", MultiApprove: policy})
	step.Status = instance.StepActive
	for _, id := range approvers {
		step.Approvers = append(step.Approvers, &instance.Approver{UserID: id, Status: instance.ApproverPending})
	}
	return &instance.Instance{ID: "i1", Status: instance.StatusPending, Steps: []*instance.Step{step}}
}

type decision struct {
	approver string
	verdict  instance.Verdict
}

func TestDecide_Policies(t *testing.T) {
	var testCases = []struct {
		description     string
		policy          flow.Policy
		decisions       []decision
		expectStatus    instance.StepStatus
		expectApprovers []instance.ApproverStatus
		expectResolved  []bool
	}{
		{
			description:     "all approve",
			policy:          flow.PolicyAll,
			decisions:       []decision{{"a", instance.VerdictApprove}, {"c", instance.VerdictApprove}, {"b", instance.VerdictApprove}},
			expectStatus:    instance.StepApproved,
			expectApprovers: []instance.ApproverStatus{instance.ApproverApproved, instance.ApproverApproved, instance.ApproverApproved},
			expectResolved:  []bool{false, false, true},
		},
		{
			description:     "all first reject",
			policy:          flow.PolicyAll,
			decisions:       []decision{{"a", instance.VerdictApprove}, {"b", instance.VerdictReject}},
			expectStatus:    instance.StepRejected,
			expectApprovers: []instance.ApproverStatus{instance.ApproverApproved, instance.ApproverRejected, instance.ApproverSkipped},
			expectResolved:  []bool{false, true},
		},
		{
			description:     "any first approve",
			policy:          flow.PolicyAny,
			decisions:       []decision{{"b", instance.VerdictApprove}},
			expectStatus:    instance.StepApproved,
			expectApprovers: []instance.ApproverStatus{instance.ApproverSkipped, instance.ApproverApproved, instance.ApproverSkipped},
			expectResolved:  []bool{true},
		},
		{
			description:     "any first reject",
			policy:          flow.PolicyAny,
			decisions:       []decision{{"c", instance.VerdictReject}},
			expectStatus:    instance.StepRejected,
			expectApprovers: []instance.ApproverStatus{instance.ApproverSkipped, instance.ApproverSkipped, instance.ApproverRejected},
			expectResolved:  []bool{true},
		},
		{
			description:     "sequential approve chain",
			policy:          flow.PolicySequential,
			decisions:       []decision{{"a", instance.VerdictApprove}, {"b", instance.VerdictApprove}, {"c", instance.VerdictApprove}},
			expectStatus:    instance.StepApproved,
			expectApprovers: []instance.ApproverStatus{instance.ApproverApproved, instance.ApproverApproved, instance.ApproverApproved},
			expectResolved:  []bool{false, false, true},
		},
		{
			description:     "sequential reject midway",
			policy:          flow.PolicySequential,
			decisions:       []decision{{"a", instance.VerdictApprove}, {"b", instance.VerdictReject}},
			expectStatus:    instance.StepRejected,
			expectApprovers: []instance.ApproverStatus{instance.ApproverApproved, instance.ApproverRejected, instance.ApproverSkipped},
			expectResolved:  []bool{false, true},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			inst := activeInstance(testCase.policy, "a", "b", "c")
			for i, d := range testCase.decisions {
				outcome, err := Decide(inst, 0, d.approver, d.verdict, "ok")
				require.NoError(t, err)
				assert.Equal(t, testCase.expectResolved[i], outcome.Resolved)
			}
			step := inst.Steps[0]
			assert.Equal(t, testCase.expectStatus, step.Status)
			for i, approver := range step.Approvers {
				assert.Equal(t, testCase.expectApprovers[i], approver.Status, approver.UserID)
			}
			assert.NotNil(t, step.CompletedAt)
			require.Len(t, inst.Decisions, len(testCase.decisions))
			last := inst.Decisions[len(inst.Decisions)-1]
			assert.True(t, last.Resolved)
			assert.Equal(t, "ok", last.Comment)
		})
	}
}

func TestDecide_Checks(t *testing.T) {
	var testCases = []struct {
		description string
		prepare     func(inst *instance.Instance)
		stepIndex   int
		approver    string
		verdict     instance.Verdict
		sentinel    error
	}{
		{description: "step out of range", stepIndex: 3, approver: "a", verdict: instance.VerdictApprove, sentinel: errs.ErrValidation},
		{description: "bad verdict", approver: "a", verdict: "maybe", sentinel: errs.ErrValidation},
		{description: "not an approver", approver: "z", verdict: instance.VerdictApprove, sentinel: errs.ErrForbidden},
		{
			description: "duplicate",
			prepare:     func(inst *instance.Instance) { inst.Steps[0].Approvers[0].Status = instance.ApproverApproved },
			approver:    "a", verdict: instance.VerdictReject, sentinel: errs.ErrDuplicateDecision,
		},
		{
			description: "instance terminal",
			prepare:     func(inst *instance.Instance) { inst.Status = instance.StatusCancelled },
			approver:    "a", verdict: instance.VerdictApprove, sentinel: errs.ErrInvalidState,
		},
		{
			description: "step not active",
			prepare:     func(inst *instance.Instance) { inst.Steps[0].Status = instance.StepPending },
			approver:    "a", verdict: instance.VerdictApprove, sentinel: errs.ErrInvalidState,
		},
		{description: "out of turn", approver: "b", verdict: instance.VerdictApprove, sentinel: errs.ErrOutOfTurn},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			inst := activeInstance(flow.PolicySequential, "a", "b")
			if testCase.prepare != nil {
				testCase.prepare(inst)
			}
			before := inst.Clone()
			_, err := Decide(inst, testCase.stepIndex, testCase.approver, testCase.verdict, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, testCase.sentinel), err.Error())
			assert.Equal(t, before, inst)
		})
	}
}

func TestDecide_Duplicate(t *testing.T) {
	inst := activeInstance(flow.PolicyAll, "a", "b")
	_, err := Decide(inst, 0, "a", instance.VerdictApprove, "")
	require.NoError(t, err)

	outcome, err := Decide(inst, 0, "a", instance.VerdictReject, "changed my mind")
	var duplicate *errs.DuplicateDecisionError
	require.True(t, errors.As(err, &duplicate))
	assert.True(t, outcome.Duplicate)
	assert.Equal(t, instance.VerdictApprove, outcome.Verdict)
	assert.Len(t, inst.Decisions, 1)
	assert.Equal(t, instance.StepActive, inst.Steps[0].Status)
}

func TestDecide_OutOfTurnExpected(t *testing.T) {
	inst := activeInstance(flow.PolicySequential, "a", "b")
	_, err := Decide(inst, 0, "b", instance.VerdictApprove, "")
	var outOfTurn *errs.OutOfTurnError
	require.True(t, errors.As(err, &outOfTurn))
	assert.Equal(t, "a", outOfTurn.Expected)
}
