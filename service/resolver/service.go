// Package resolver computes the approver set of an approve node at
// activation time, querying the organizational directory under bounded
// timeouts.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/service/directory"
)

// DefaultLookupTimeout bounds a single directory call.
const DefaultLookupTimeout = 2 * time.Second

// Service resolves approvers.
type Service struct {
	dir     directory.Directory
	timeout time.Duration
	observe func(approverType flow.ApproverType, took time.Duration, err error)
}

// Option configures the resolver.
type Option func(s *Service)

// WithLookupTimeout sets the per call directory timeout.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithObserver receives the duration and outcome of every resolution.
func WithObserver(fn func(approverType flow.ApproverType, took time.Duration, err error)) Option {
	return func(s *Service) { s.observe = fn }
}

// New creates a resolver over dir.
func New(dir directory.Directory, options ...Option) *Service {
	ret := &Service{dir: dir, timeout: DefaultLookupTimeout}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Resolve returns the ordered, de-duplicated active approvers of node. Any
// failure is reported as *errs.UnresolvedApproversError carrying the cause.
func (s *Service) Resolve(ctx context.Context, node *flow.Approve, ictx *instance.Context) ([]string, error) {
	started := time.Now()
	ids, err := s.resolve(ctx, node, ictx)
	if err == nil {
		ids, err = s.active(ctx, ids)
	}
	if err == nil && len(ids) == 0 {
		err = errors.New("no active approvers")
	}
	if err != nil {
		err = &errs.UnresolvedApproversError{NodeID: node.ID, Cause: err}
		ids = nil
	}
	if s.observe != nil {
		s.observe(node.ApproverType, time.Since(started), err)
	}
	return ids, err
}

func (s *Service) resolve(ctx context.Context, node *flow.Approve, ictx *instance.Context) ([]string, error) {
	switch node.ApproverType {
	case flow.ApproverSubmitter:
		if ictx.SubmitterID == "" {
			return nil, errors.New("submitter is unknown")
		}
		return []string{ictx.SubmitterID}, nil
	case flow.ApproverSupervisor:
		return s.supervisor(ctx, ictx.SubmitterID, node.SupervisorLevel())
	case flow.ApproverDeptLeader:
		if ictx.DepartmentID == "" {
			return nil, errors.New("submitter department is unknown")
		}
		head, err := call(ctx, s.timeout, func(ctx context.Context) (*directory.User, error) {
			return s.dir.DepartmentHead(ctx, ictx.DepartmentID)
		})
		if err != nil {
			return nil, fmt.Errorf("department %s head lookup failed: %w", ictx.DepartmentID, err)
		}
		if head == nil {
			return nil, fmt.Errorf("department %s has no head", ictx.DepartmentID)
		}
		return []string{head.ID}, nil
	case flow.ApproverDesignated:
		return dedupe(node.Approvers), nil
	case flow.ApproverSelfSelect:
		selected := ictx.SelfSelected[node.ID]
		if err := s.CheckSelection(ctx, node, selected); err != nil {
			return nil, err
		}
		return dedupe(selected), nil
	case flow.ApproverRole:
		members, err := call(ctx, s.timeout, func(ctx context.Context) ([]*directory.User, error) {
			return s.dir.RoleMembers(ctx, node.Role)
		})
		if err != nil {
			return nil, fmt.Errorf("role %s lookup failed: %w", node.Role, err)
		}
		ids := make([]string, 0, len(members))
		for _, member := range members {
			ids = append(ids, member.ID)
		}
		return dedupe(ids), nil
	}
	return nil, fmt.Errorf("unsupported approver type %q", node.ApproverType)
}

func (s *Service) supervisor(ctx context.Context, userID string, level int) ([]string, error) {
	current := userID
	for i := 0; i < level; i++ {
		candidate := current
		manager, err := call(ctx, s.timeout, func(ctx context.Context) (*directory.User, error) {
			return s.dir.Manager(ctx, candidate)
		})
		if err != nil {
			return nil, fmt.Errorf("manager lookup of %s failed: %w", candidate, err)
		}
		if manager == nil {
			return nil, fmt.Errorf("%s has no supervisor at level %d", userID, i+1)
		}
		current = manager.ID
	}
	return []string{current}, nil
}

func (s *Service) active(ctx context.Context, ids []string) ([]string, error) {
	ret := make([]string, 0, len(ids))
	for _, id := range ids {
		user, err := s.User(ctx, id)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if user.Active {
			ret = append(ret, id)
		}
	}
	return ret, nil
}

// User looks up a directory user under the lookup timeout.
func (s *Service) User(ctx context.Context, id string) (*directory.User, error) {
	return call(ctx, s.timeout, func(ctx context.Context) (*directory.User, error) {
		return s.dir.User(ctx, id)
	})
}

// Ancestry returns departmentID followed by its ancestors, bounded by the
// lookup timeout as a whole.
func (s *Service) Ancestry(ctx context.Context, departmentID string) ([]string, error) {
	return call(ctx, s.timeout, func(ctx context.Context) ([]string, error) {
		return directory.Ancestry(ctx, s.dir, departmentID)
	})
}

// CheckSelection validates a submitter's pick for a selfSelect node.
func (s *Service) CheckSelection(ctx context.Context, node *flow.Approve, ids []string) error {
	if len(ids) == 0 {
		return errors.New("at least one approver must be selected")
	}
	unique := dedupe(ids)
	if len(unique) != len(ids) {
		return errors.New("approvers must not repeat")
	}
	selectRange := node.SelectRange
	if selectRange != nil && selectRange.Max > 0 && len(ids) > selectRange.Max {
		return fmt.Errorf("at most %d approvers may be selected", selectRange.Max)
	}
	for _, id := range ids {
		if id == "" {
			return errors.New("approver id must not be empty")
		}
		user, err := s.User(ctx, id)
		if err != nil {
			return fmt.Errorf("approver %s: %w", id, err)
		}
		if !user.Active {
			return fmt.Errorf("approver %s is inactive", id)
		}
		if selectRange.Unbounded() {
			continue
		}
		allowed, err := s.inRange(ctx, user, selectRange)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("approver %s is outside the selectable range", id)
		}
	}
	return nil
}

func (s *Service) inRange(ctx context.Context, user *directory.User, selectRange *flow.SelectRange) (bool, error) {
	for _, candidate := range selectRange.Users {
		if candidate == user.ID {
			return true, nil
		}
	}
	if len(selectRange.Departments) > 0 && user.DepartmentID != "" {
		ancestry, err := s.Ancestry(ctx, user.DepartmentID)
		if err != nil {
			return false, fmt.Errorf("department lookup of %s failed: %w", user.ID, err)
		}
		for _, dept := range ancestry {
			for _, allowed := range selectRange.Departments {
				if dept == allowed {
					return true, nil
				}
			}
		}
	}
	for _, role := range selectRange.Roles {
		members, err := call(ctx, s.timeout, func(ctx context.Context) ([]*directory.User, error) {
			return s.dir.RoleMembers(ctx, role)
		})
		if err != nil {
			return false, fmt.Errorf("role %s lookup failed: %w", role, err)
		}
		for _, member := range members {
			if member.ID == user.ID {
				return true, nil
			}
		}
	}
	return false, nil
}

// call runs fn under timeout, returning as soon as the deadline passes even
// when the directory ignores ctx.
func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value: value, err: err}
	}()
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	ret := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		ret = append(ret, id)
	}
	return ret
}
