package instance

import "time"

// Verdict is an approver decision.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	return v == VerdictApprove || v == VerdictReject
}

// Decision is an audit record of one accepted decision.
type Decision struct {
	StepIndex  int       `json:"stepIndex"`
	NodeID     string    `json:"nodeId"`
	ApproverID string    `json:"approverId"`
	Verdict    Verdict   `json:"verdict"`
	Comment    string    `json:"comment,omitempty"`
	DecidedAt  time.Time `json:"decidedAt"`
	// Resolved is set when the decision resolved its step.
	Resolved bool `json:"resolved"`
}
