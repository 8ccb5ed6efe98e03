package flow

import (
	"encoding/json"
	"fmt"

	"github.com/viant/approvo/errs"
)

// Schema is the ordered node list: submit, one or more approve, end.
type Schema struct {
	Nodes []Node `json:"-" yaml:"-"`
}

// ApproveNodes returns approve nodes in document order.
func (s *Schema) ApproveNodes() []*Approve {
	var ret []*Approve
	for _, node := range s.Nodes {
		if approve, ok := node.(*Approve); ok {
			ret = append(ret, approve)
		}
	}
	return ret
}

// Lookup returns a node by id.
func (s *Schema) Lookup(id string) Node {
	for _, node := range s.Nodes {
		if node != nil && node.NodeID() == id {
			return node
		}
	}
	return nil
}

// ApplyDefaults sets default policy and supervisor level on approve nodes.
func (s *Schema) ApplyDefaults() {
	for _, node := range s.ApproveNodes() {
		if node.MultiApprove == "" {
			node.MultiApprove = PolicyAll
		}
		if node.ApproverType == ApproverSupervisor && node.Level <= 0 {
			node.Level = DefaultSupervisorLevel
		}
	}
}

// Validate checks structural rules of the flow.
func (s *Schema) Validate() error {
	issues := errs.NewValidationError()
	count := len(s.Nodes)
	if count < 3 {
		issues.Add("flow", "must contain submit, at least one approve and end nodes")
	}
	seen := map[string]bool{}
	submits, ends := 0, 0
	for i, node := range s.Nodes {
		path := fmt.Sprintf("flow[%d]", i)
		if node == nil {
			issues.Add(path, "node is undefined")
			continue
		}
		id := node.NodeID()
		switch {
		case id == "":
			issues.Add(path+".id", "id is required")
		case seen[id]:
			issues.Add(path+".id", "duplicate node id %q", id)
		}
		seen[id] = true
		switch actual := node.(type) {
		case *Submit:
			submits++
			if i != 0 {
				issues.Add(path, "submit must be the first node")
			}
		case *End:
			ends++
			if i != count-1 {
				issues.Add(path, "end must be the last node")
			}
		case *Approve:
			if i == 0 || i == count-1 {
				issues.Add(path, "approve must be between submit and end")
			}
			actual.check(path, issues)
		}
	}
	if submits != 1 {
		issues.Add("flow.submit", "exactly one submit node is required")
	}
	if ends != 1 {
		issues.Add("flow.end", "exactly one end node is required")
	}
	if len(s.ApproveNodes()) == 0 {
		issues.Add("flow.approve", "at least one approve node is required")
	}
	return issues.OrNil()
}

func (n *Approve) check(path string, issues *errs.ValidationError) {
	if !n.ApproverType.Valid() {
		issues.Add(path+".approverType", "unsupported approver type %q", n.ApproverType)
	}
	if n.MultiApprove != "" && !n.MultiApprove.Valid() {
		issues.Add(path+".multiApprove", "unsupported policy %q", n.MultiApprove)
	}
	switch n.ApproverType {
	case ApproverDesignated:
		if len(n.Approvers) == 0 {
			issues.Add(path+".approvers", "designated node requires at least one approver")
		}
		for _, id := range n.Approvers {
			if id == "" {
				issues.Add(path+".approvers", "approver id must not be empty")
				break
			}
		}
	case ApproverRole:
		if n.Role == "" {
			issues.Add(path+".role", "role node requires a role")
		}
	case ApproverSupervisor:
		if n.Level < 0 {
			issues.Add(path+".level", "must not be negative")
		}
	}
	if n.SelectRange != nil && n.SelectRange.Max < 0 {
		issues.Add(path+".selectRange.max", "must not be negative")
	}
}

// MarshalJSON encodes nodes as an array of envelopes.
func (s Schema) MarshalJSON() ([]byte, error) {
	return encodeNodes(s.Nodes)
}

// UnmarshalJSON decodes an array of node envelopes.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nodes := make([]Node, 0, len(raw))
	for i, item := range raw {
		node, err := UnmarshalNode(item)
		if err != nil {
			return fmt.Errorf("flow node %d: %w", i, err)
		}
		nodes = append(nodes, node)
	}
	s.Nodes = nodes
	return nil
}

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	ret := &Schema{Nodes: make([]Node, 0, len(s.Nodes))}
	for _, node := range s.Nodes {
		switch actual := node.(type) {
		case *Submit:
			clone := *actual
			ret.Nodes = append(ret.Nodes, &clone)
		case *End:
			clone := *actual
			ret.Nodes = append(ret.Nodes, &clone)
		case *Approve:
			clone := *actual
			clone.Approvers = append([]string(nil), actual.Approvers...)
			clone.CC = append([]string(nil), actual.CC...)
			if actual.SelectRange != nil {
				selectRange := *actual.SelectRange
				selectRange.Departments = append([]string(nil), actual.SelectRange.Departments...)
				selectRange.Roles = append([]string(nil), actual.SelectRange.Roles...)
				selectRange.Users = append([]string(nil), actual.SelectRange.Users...)
				clone.SelectRange = &selectRange
			}
			ret.Nodes = append(ret.Nodes, &clone)
		default:
			ret.Nodes = append(ret.Nodes, node)
		}
	}
	return ret
}
