// Package compiler turns a published definition and a submission into a
// pending instance.
package compiler

import (
	"context"
	"fmt"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/internal/idgen"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/service/directory"
)

// Lookup answers the directory questions of a submission. Implementations
// bound every call, see resolver.Service.
type Lookup interface {
	User(ctx context.Context, id string) (*directory.User, error)
	Ancestry(ctx context.Context, departmentID string) ([]string, error)
	// CheckSelection validates a submitter's approver pick for a selfSelect node.
	CheckSelection(ctx context.Context, node *flow.Approve, ids []string) error
}

// Service compiles instances.
type Service struct {
	lookup Lookup
}

// New creates a compiler.
func New(lookup Lookup) *Service {
	return &Service{lookup: lookup}
}

// Compile validates a submission against def and returns a new pending
// instance with one pending step per approve node. Nothing is returned on
// validation failure.
func (s *Service) Compile(ctx context.Context, def *model.Definition, formData map[string]interface{}, submitter *instance.Context) (*instance.Instance, error) {
	if def == nil {
		return nil, fmt.Errorf("definition was nil")
	}
	if submitter == nil || submitter.SubmitterID == "" {
		issues := errs.NewValidationError()
		issues.Add("submittedBy", "is required")
		return nil, issues
	}
	if !def.IsPublished() {
		return nil, &errs.StateError{Entity: "definition " + def.Key(), State: string(def.Status), Action: "submit"}
	}
	ictx := &instance.Context{SubmitterID: submitter.SubmitterID, DepartmentID: submitter.DepartmentID}
	if ictx.DepartmentID == "" {
		user, err := s.lookup.User(ctx, submitter.SubmitterID)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup submitter %s: %w", submitter.SubmitterID, err)
		}
		ictx.DepartmentID = user.DepartmentID
	}
	if err := s.checkVisibility(ctx, def, ictx); err != nil {
		return nil, err
	}

	issues := errs.NewValidationError()
	if err := def.Form.ValidateData(formData); err != nil {
		if validation, ok := err.(*errs.ValidationError); ok {
			issues.Merge("", validation)
		} else {
			return nil, err
		}
	}
	nodes := def.Flow.ApproveNodes()
	for _, node := range nodes {
		if node.ApproverType != flow.ApproverSelfSelect {
			continue
		}
		selected := submitter.SelfSelected[node.ID]
		if err := s.lookup.CheckSelection(ctx, node, selected); err != nil {
			issues.Add("approvers."+node.ID, "%v", err)
			continue
		}
		if ictx.SelfSelected == nil {
			ictx.SelfSelected = map[string][]string{}
		}
		ictx.SelfSelected[node.ID] = append([]string(nil), selected...)
	}
	if issues.HasIssues() {
		return nil, issues
	}

	now := clock.Now()
	ret := &instance.Instance{
		ID:                idgen.New(),
		DefinitionID:      def.ID,
		DefinitionVersion: def.Version,
		Definition:        def.Clone(),
		FormData:          formData,
		SubmittedBy:       submitter.SubmitterID,
		Context:           *ictx,
		Status:            instance.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for i, node := range nodes {
		ret.Steps = append(ret.Steps, instance.NewStep(i, node))
	}
	return ret, nil
}

func (s *Service) checkVisibility(ctx context.Context, def *model.Definition, ictx *instance.Context) error {
	visibility := def.Visibility
	if visibility == nil || visibility.Scope != model.ScopeAllowList {
		return nil
	}
	var departments []string
	if ictx.DepartmentID != "" && len(visibility.Departments) > 0 {
		var err error
		if departments, err = s.lookup.Ancestry(ctx, ictx.DepartmentID); err != nil {
			return fmt.Errorf("failed to lookup department %s: %w", ictx.DepartmentID, err)
		}
	}
	if !visibility.Allows(ictx.SubmitterID, departments) {
		return &errs.ForbiddenError{Actor: ictx.SubmitterID, Action: "submit " + def.ID}
	}
	return nil
}
