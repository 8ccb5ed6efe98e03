package instance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/model/flow"
)

func newSequentialStep() *Step {
	step := NewStep(0, &flow.Approve{ID: "review", MultiApprove: flow.PolicySequential, CC: []string{"hr"}})
	step.Status = StepActive
	step.Approvers = []*Approver{
		{UserID: "u1", Status: ApproverPending},
		{UserID: "u2", Status: ApproverPending},
	}
	return step
}

func TestStep_Eligible(t *testing.T) {
	step := newSequentialStep()
	assert.True(t, step.Eligible("u1"))
	assert.False(t, step.Eligible("u2"))
	assert.False(t, step.Eligible("u3"))

	step.Approvers[0].Status = ApproverApproved
	step.Turn = 1
	assert.False(t, step.Eligible("u1"))
	assert.True(t, step.Eligible("u2"))

	anyStep := NewStep(1, &flow.Approve{ID: "any", MultiApprove: flow.PolicyAny})
	anyStep.Approvers = []*Approver{{UserID: "a", Status: ApproverPending}, {UserID: "b", Status: ApproverPending}}
	assert.True(t, anyStep.Eligible("b"))
}

func TestStep_Resolve(t *testing.T) {
	step := newSequentialStep()
	step.Approvers[0].Status = ApproverRejected
	now := time.Now()
	step.Resolve(StepRejected, now)
	assert.Equal(t, StepRejected, step.Status)
	assert.Equal(t, ApproverSkipped, step.Approvers[1].Status)
	assert.Equal(t, ApproverRejected, step.Approvers[0].Status)
	assert.Empty(t, step.Outstanding())
}

func TestInstance_Clone(t *testing.T) {
	inst := &Instance{
		ID:       "i1",
		Status:   StatusPending,
		FormData: map[string]interface{}{"amount": 10.0},
		Steps:    []*Step{newSequentialStep()},
		Context:  Context{SubmitterID: "s1", SelfSelected: map[string][]string{"n": {"u1"}}},
	}
	clone := inst.Clone()
	require.NotNil(t, clone)
	clone.Steps[0].Approvers[0].Status = ApproverApproved
	clone.FormData["amount"] = 20.0
	clone.Context.SelfSelected["n"][0] = "u9"

	assert.Equal(t, ApproverPending, inst.Steps[0].Approvers[0].Status)
	assert.Equal(t, 10.0, inst.FormData["amount"])
	assert.Equal(t, "u1", inst.Context.SelfSelected["n"][0])
	assert.True(t, inst.AwaitsDecisionFrom("u1"))
	assert.False(t, inst.AwaitsDecisionFrom("u2"))

	inst.Complete(StatusApproved, time.Now())
	assert.True(t, inst.Status.Terminal())
	assert.False(t, inst.AwaitsDecisionFrom("u1"))
}
