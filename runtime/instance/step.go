package instance

import (
	"time"

	"github.com/viant/approvo/model/flow"
)

// StepStatus is the lifecycle state of a step.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepActive   StepStatus = "active"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepSkipped  StepStatus = "skipped"
)

// Resolved reports whether the step reached a final status.
func (s StepStatus) Resolved() bool {
	return s == StepApproved || s == StepRejected || s == StepSkipped
}

// ApproverStatus is the per-approver state within a step.
type ApproverStatus string

const (
	ApproverPending  ApproverStatus = "pending"
	ApproverApproved ApproverStatus = "approved"
	ApproverRejected ApproverStatus = "rejected"
	ApproverSkipped  ApproverStatus = "skipped"
)

// Approver is one resolved approver of a step.
type Approver struct {
	UserID    string         `json:"userId"`
	Status    ApproverStatus `json:"status"`
	Comment   string         `json:"comment,omitempty"`
	DecidedAt *time.Time     `json:"decidedAt,omitempty"`
}

// Step is the runtime counterpart of an approve node.
type Step struct {
	Index       int         `json:"index"`
	NodeID      string      `json:"nodeId"`
	Name        string      `json:"name,omitempty"`
	Policy      flow.Policy `json:"policy"`
	Status      StepStatus  `json:"status"`
	Approvers   []*Approver `json:"approvers,omitempty"`
	Turn        int         `json:"turn"`
	CC          []string    `json:"cc,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// NewStep creates a pending step for an approve node.
func NewStep(index int, node *flow.Approve) *Step {
	return &Step{
		Index:  index,
		NodeID: node.ID,
		Name:   node.Name,
		Policy: node.Policy(),
		Status: StepPending,
		CC:     append([]string(nil), node.CC...),
	}
}

// Approver returns the approver entry for userID.
func (s *Step) Approver(userID string) *Approver {
	for _, approver := range s.Approvers {
		if approver.UserID == userID {
			return approver
		}
	}
	return nil
}

// ApproverIDs returns approver user ids in order.
func (s *Step) ApproverIDs() []string {
	ret := make([]string, 0, len(s.Approvers))
	for _, approver := range s.Approvers {
		ret = append(ret, approver.UserID)
	}
	return ret
}

// Outstanding returns approvers that have not decided.
func (s *Step) Outstanding() []*Approver {
	var ret []*Approver
	for _, approver := range s.Approvers {
		if approver.Status == ApproverPending {
			ret = append(ret, approver)
		}
	}
	return ret
}

// Eligible reports whether userID may decide now.
func (s *Step) Eligible(userID string) bool {
	approver := s.Approver(userID)
	if approver == nil || approver.Status != ApproverPending {
		return false
	}
	if s.Policy == flow.PolicySequential {
		return s.Turn < len(s.Approvers) && s.Approvers[s.Turn].UserID == userID
	}
	return true
}

// Resolve finalizes the step, skipping every outstanding approver.
func (s *Step) Resolve(status StepStatus, at time.Time) {
	s.Status = status
	s.CompletedAt = &at
	for _, approver := range s.Outstanding() {
		approver.Status = ApproverSkipped
	}
}
