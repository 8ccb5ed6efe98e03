package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/service/directory"
)

func testDirectory() *directory.Memory {
	return directory.NewMemory(&directory.Seed{
		Departments: []*directory.Department{
			{ID: "corp", HeadID: "ceo"},
			{ID: "eng", ParentID: "corp", HeadID: "cto"},
			{ID: "web", ParentID: "eng", HeadID: "lead"},
			{ID: "empty", ParentID: "corp"},
		},
		Users: []*directory.User{
			{ID: "ceo", DepartmentID: "corp", Active: true},
			{ID: "cto", DepartmentID: "eng", ManagerID: "ceo", Active: true},
			{ID: "lead", DepartmentID: "web", ManagerID: "cto", Active: true, Roles: []string{"finance"}},
			{ID: "dev", DepartmentID: "web", ManagerID: "lead", Active: true},
			{ID: "ops", DepartmentID: "corp", ManagerID: "ceo", Active: true, Roles: []string{"finance"}},
			{ID: "gone", DepartmentID: "web", Active: false, Roles: []string{"finance"}},
		},
	})
}

type slowDirectory struct {
	*directory.Memory
	delay time.Duration
}

func (d *slowDirectory) Manager(ctx context.Context, userID string) (*directory.User, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.Memory.Manager(ctx, userID)
}

type failingDirectory struct {
	*directory.Memory
}

func (d *failingDirectory) RoleMembers(context.Context, string) ([]*directory.User, error) {
	return nil, errors.New("directory unavailable")
}

func TestService_Resolve(t *testing.T) {
	ictx := &instance.Context{
		SubmitterID:  "dev",
		DepartmentID: "web",
		SelfSelected: map[string][]string{"pick": {"ops", "lead"}},
	}
	var testCases = []struct {
		description string
		node        *flow.Approve
		ictx        *instance.Context
		expect      []string
		unresolved  bool
	}{
		{description: "submitter", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverSubmitter}, expect: []string{"dev"}},
		{description: "direct supervisor", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverSupervisor}, expect: []string{"lead"}},
		{description: "second level supervisor", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverSupervisor, Level: 2}, expect: []string{"cto"}},
		{description: "chain too short", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverSupervisor, Level: 5}, unresolved: true},
		{description: "department head", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverDeptLeader}, expect: []string{"lead"}},
		{description: "vacant head", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverDeptLeader}, ictx: &instance.Context{SubmitterID: "dev", DepartmentID: "empty"}, unresolved: true},
		{description: "designated deduplicated and filtered", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverDesignated, Approvers: []string{"ops", "gone", "ops", "cto", "ghost"}}, expect: []string{"ops", "cto"}},
		{description: "designated all inactive", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverDesignated, Approvers: []string{"gone"}}, unresolved: true},
		{description: "role members active only", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverRole, Role: "finance"}, expect: []string{"lead", "ops"}},
		{description: "unknown role", node: &flow.Approve{ID: "n", ApproverType: flow.ApproverRole, Role: "legal"}, unresolved: true},
		{description: "self selected", node: &flow.Approve{ID: "pick", ApproverType: flow.ApproverSelfSelect}, expect: []string{"ops", "lead"}},
		{description: "self selected missing", node: &flow.Approve{ID: "other", ApproverType: flow.ApproverSelfSelect}, unresolved: true},
	}
	srv := New(testDirectory())
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			c := ictx
			if testCase.ictx != nil {
				c = testCase.ictx
			}
			actual, err := srv.Resolve(context.Background(), testCase.node, c)
			if testCase.unresolved {
				require.Error(t, err)
				var unresolved *errs.UnresolvedApproversError
				require.True(t, errors.As(err, &unresolved))
				assert.Equal(t, testCase.node.ID, unresolved.NodeID)
				assert.NotNil(t, unresolved.Cause)
				assert.Nil(t, actual)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestService_Resolve_SupervisorReassigned(t *testing.T) {
	dir := testDirectory()
	srv := New(dir)
	node := &flow.Approve{ID: "n", ApproverType: flow.ApproverSupervisor}
	ictx := &instance.Context{SubmitterID: "dev", DepartmentID: "web"}

	actual, err := srv.Resolve(context.Background(), node, ictx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead"}, actual)

	require.NoError(t, dir.SetManager("dev", "ops"))
	actual, err = srv.Resolve(context.Background(), node, ictx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, actual)
}

func TestService_Resolve_Timeout(t *testing.T) {
	var observed error
	srv := New(&slowDirectory{Memory: testDirectory(), delay: time.Second},
		WithLookupTimeout(20*time.Millisecond),
		WithObserver(func(_ flow.ApproverType, _ time.Duration, err error) { observed = err }))
	started := time.Now()
	_, err := srv.Resolve(context.Background(), &flow.Approve{ID: "n", ApproverType: flow.ApproverSupervisor}, &instance.Context{SubmitterID: "dev"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnresolved))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, err, observed)
}

func TestService_Resolve_DirectoryFailure(t *testing.T) {
	srv := New(&failingDirectory{Memory: testDirectory()})
	_, err := srv.Resolve(context.Background(), &flow.Approve{ID: "n", ApproverType: flow.ApproverRole, Role: "finance"}, &instance.Context{SubmitterID: "dev"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnresolved))
	assert.Contains(t, err.Error(), "directory unavailable")
}

func TestService_CheckSelection(t *testing.T) {
	var testCases = []struct {
		description string
		selectRange *flow.SelectRange
		ids         []string
		expectErr   string
	}{
		{description: "unbounded", ids: []string{"ops", "dev"}},
		{description: "empty", ids: nil, expectErr: "at least one"},
		{description: "repeated", ids: []string{"ops", "ops"}, expectErr: "must not repeat"},
		{description: "over max", selectRange: &flow.SelectRange{Max: 1}, ids: []string{"ops", "dev"}, expectErr: "at most 1"},
		{description: "inactive", ids: []string{"gone"}, expectErr: "inactive"},
		{description: "unknown", ids: []string{"ghost"}, expectErr: "not found"},
		{description: "explicit user", selectRange: &flow.SelectRange{Users: []string{"ops"}}, ids: []string{"ops"}},
		{description: "sub department", selectRange: &flow.SelectRange{Departments: []string{"eng"}}, ids: []string{"dev", "lead"}},
		{description: "outside department", selectRange: &flow.SelectRange{Departments: []string{"eng"}}, ids: []string{"ops"}, expectErr: "outside"},
		{description: "role member", selectRange: &flow.SelectRange{Roles: []string{"finance"}}, ids: []string{"ops"}},
		{description: "not a role member", selectRange: &flow.SelectRange{Roles: []string{"finance"}}, ids: []string{"dev"}, expectErr: "outside"},
	}
	srv := New(testDirectory())
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			node := &flow.Approve{ID: "pick", ApproverType: flow.ApproverSelfSelect, SelectRange: testCase.selectRange}
			err := srv.CheckSelection(context.Background(), node, testCase.ids)
			if testCase.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), testCase.expectErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
