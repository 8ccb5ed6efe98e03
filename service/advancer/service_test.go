package advancer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
)

type stubResolver map[string][]string

func (r stubResolver) Resolve(_ context.Context, node *flow.Approve, _ *instance.Context) ([]string, error) {
	ids, ok := r[node.ID]
	if !ok {
		return nil, &errs.UnresolvedApproversError{NodeID: node.ID, Cause: errors.New("nobody home")}
	}
	return ids, nil
}

func newInstance(policy flow.Policy) *instance.Instance {
	nodes := []flow.Node{
		&flow.Submit{ID: "start"},
		&flow.Approve{ID: "first", ApproverType: flow.ApproverDesignated, Approvers: []string{"a"}, MultiApprove: policy},
		&flow.Approve{ID: "second", ApproverType: flow.ApproverRole, Role: "ops"},
		&flow.End{ID: "done"},
	}
	def := &model.Definition{ID: "d", Version: 1, Status: model.StatusPublished, Flow: flow.Schema{Nodes: nodes}}
	inst := &instance.Instance{ID: "i1", Definition: def, SubmittedBy: "sub", Status: instance.StatusPending}
	for i, node := range def.Flow.ApproveNodes() {
		inst.Steps = append(inst.Steps, instance.NewStep(i, node))
	}
	return inst
}

func TestService_Activate(t *testing.T) {
	srv := New(stubResolver{"first": {"a", "b"}})
	inst := newInstance(flow.PolicySequential)

	transition, err := srv.Activate(context.Background(), inst, 0)
	require.NoError(t, err)
	step := inst.Steps[0]
	assert.Same(t, step, transition.Activated)
	assert.Equal(t, instance.StepActive, step.Status)
	assert.Equal(t, []string{"a", "b"}, step.ApproverIDs())
	assert.Equal(t, 0, step.Turn)
	assert.NotNil(t, step.StartedAt)

	_, err = srv.Activate(context.Background(), inst, 0)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestService_Advance(t *testing.T) {
	var testCases = []struct {
		description  string
		resolved     instance.StepStatus
		stepIndex    int
		expectStatus instance.Status
		expectStep   int
		blocked      bool
	}{
		{description: "approved activates next", resolved: instance.StepApproved, stepIndex: 0, expectStatus: instance.StatusPending, expectStep: 1},
		{description: "approved last completes", resolved: instance.StepApproved, stepIndex: 1, expectStatus: instance.StatusApproved, expectStep: 1},
		{description: "rejected completes", resolved: instance.StepRejected, stepIndex: 0, expectStatus: instance.StatusRejected, expectStep: 0},
		{description: "next unresolvable blocks", resolved: instance.StepApproved, stepIndex: 0, expectStatus: instance.StatusPending, expectStep: 1, blocked: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			resolver := stubResolver{"first": {"a"}, "second": {"c"}}
			if testCase.blocked {
				delete(resolver, "second")
			}
			srv := New(resolver)
			inst := newInstance(flow.PolicyAll)
			for i := 0; i <= testCase.stepIndex; i++ {
				inst.Steps[i].Status = instance.StepApproved
			}
			inst.CurrentStep = testCase.stepIndex
			inst.Steps[testCase.stepIndex].Status = testCase.resolved

			transition, err := srv.Advance(context.Background(), inst)
			assert.Equal(t, testCase.expectStatus, inst.Status)
			assert.Equal(t, testCase.expectStep, inst.CurrentStep)
			if testCase.blocked {
				var unresolved *errs.UnresolvedApproversError
				require.True(t, errors.As(err, &unresolved))
				assert.Equal(t, "i1", unresolved.InstanceID)
				assert.Equal(t, 1, unresolved.StepIndex)
				assert.Equal(t, "second", unresolved.NodeID)
				require.NotNil(t, inst.Blocked)
				assert.Equal(t, "nobody home", inst.Blocked.Reason)
				assert.Same(t, inst.Blocked, transition.Blocked)
				return
			}
			require.NoError(t, err)
			if testCase.expectStatus.Terminal() {
				assert.Equal(t, testCase.expectStatus, transition.Completed)
				assert.NotNil(t, inst.CompletedAt)
				if testCase.resolved == instance.StepRejected {
					assert.Equal(t, instance.StepPending, inst.Steps[1].Status)
				}
				return
			}
			assert.Equal(t, instance.StepActive, inst.Steps[1].Status)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	srv := New(stubResolver{"first": {"a", "b"}})
	inst := newInstance(flow.PolicyAll)
	_, err := srv.Activate(context.Background(), inst, 0)
	require.NoError(t, err)
	inst.Steps[0].Approvers[0].Status = instance.ApproverApproved

	_, err = srv.Cancel(inst, "a")
	assert.True(t, errors.Is(err, errs.ErrForbidden))

	transition, err := srv.Cancel(inst, "sub")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusCancelled, transition.Completed)
	assert.Equal(t, instance.StepSkipped, inst.Steps[0].Status)
	assert.Equal(t, instance.ApproverApproved, inst.Steps[0].Approvers[0].Status)
	assert.Equal(t, instance.ApproverSkipped, inst.Steps[0].Approvers[1].Status)
	assert.Equal(t, instance.StepPending, inst.Steps[1].Status)

	_, err = srv.Cancel(inst, "sub")
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestService_CancelBlocked(t *testing.T) {
	srv := New(stubResolver{})
	inst := newInstance(flow.PolicyAll)
	_, err := srv.Activate(context.Background(), inst, 0)
	require.Error(t, err)
	require.NotNil(t, inst.Blocked)

	transition, err := srv.Cancel(inst, "sub")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusCancelled, transition.Completed)
	assert.Nil(t, inst.Blocked)
	assert.Equal(t, instance.StepSkipped, inst.Steps[0].Status)
	assert.NotNil(t, inst.Steps[0].CompletedAt)
	assert.Equal(t, instance.StepPending, inst.Steps[1].Status)
}

func TestService_RetryAndAssign(t *testing.T) {
	resolver := stubResolver{}
	srv := New(resolver)
	inst := newInstance(flow.PolicyAll)

	_, err := srv.Activate(context.Background(), inst, 0)
	require.Error(t, err)
	require.NotNil(t, inst.Blocked)
	assert.Equal(t, 1, inst.Blocked.Attempts)

	_, err = srv.Retry(context.Background(), inst)
	require.True(t, errors.Is(err, errs.ErrUnresolved))
	assert.Equal(t, 2, inst.Blocked.Attempts)

	resolver["first"] = []string{"a"}
	transition, err := srv.Retry(context.Background(), inst)
	require.NoError(t, err)
	assert.Nil(t, inst.Blocked)
	assert.Equal(t, instance.StepActive, transition.Activated.Status)

	_, err = srv.Retry(context.Background(), inst)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	other := newInstance(flow.PolicyAll)
	_, _ = New(stubResolver{}).Activate(context.Background(), other, 0)
	_, err = srv.Assign(other, 1, []string{"x"})
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
	_, err = srv.Assign(other, 0, []string{"", ""})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	transition, err = srv.Assign(other, 0, []string{"x", "y", "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, transition.Activated.ApproverIDs())
	assert.Nil(t, other.Blocked)
}
