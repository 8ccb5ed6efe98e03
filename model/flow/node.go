// Package flow defines the ordered node list of an approval process.
package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NodeType identifies a node variant in the JSON/YAML envelope.
type NodeType string

const (
	NodeSubmit  NodeType = "submit"
	NodeApprove NodeType = "approve"
	NodeEnd     NodeType = "end"
)

// ApproverType selects how approvers of an approve node are resolved.
type ApproverType string

const (
	ApproverSupervisor ApproverType = "supervisor"
	ApproverDeptLeader ApproverType = "deptLeader"
	ApproverDesignated ApproverType = "designated"
	ApproverSelfSelect ApproverType = "selfSelect"
	ApproverSubmitter  ApproverType = "submitter"
	ApproverRole       ApproverType = "role"
)

// Valid reports whether t is a known approver type.
func (t ApproverType) Valid() bool {
	switch t {
	case ApproverSupervisor, ApproverDeptLeader, ApproverDesignated, ApproverSelfSelect, ApproverSubmitter, ApproverRole:
		return true
	}
	return false
}

// Policy is the consensus rule aggregating approver decisions of a step.
type Policy string

const (
	PolicyAll        Policy = "all"
	PolicyAny        Policy = "any"
	PolicySequential Policy = "sequential"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyAll, PolicyAny, PolicySequential:
		return true
	}
	return false
}

// Node is one flow node variant.
type Node interface {
	Type() NodeType
	NodeID() string
	NodeName() string
}

// Submit is the entry node; the submitter fills the form.
type Submit struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (n *Submit) Type() NodeType   { return NodeSubmit }
func (n *Submit) NodeID() string   { return n.ID }
func (n *Submit) NodeName() string { return n.Name }

// End is the terminal node.
type End struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (n *End) Type() NodeType   { return NodeEnd }
func (n *End) NodeID() string   { return n.ID }
func (n *End) NodeName() string { return n.Name }

// SelectRange restricts the candidates a submitter may pick for a selfSelect node.
type SelectRange struct {
	Departments []string `json:"departments,omitempty" yaml:"departments,omitempty"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Users       []string `json:"users,omitempty" yaml:"users,omitempty"`
	Max         int      `json:"max,omitempty" yaml:"max,omitempty"`
}

// Unbounded reports whether any active user may be selected.
func (r *SelectRange) Unbounded() bool {
	return r == nil || (len(r.Departments) == 0 && len(r.Roles) == 0 && len(r.Users) == 0)
}

// DefaultSupervisorLevel is the management chain depth when unset.
const DefaultSupervisorLevel = 1

// Approve is a decision node.
type Approve struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name,omitempty" yaml:"name,omitempty"`
	ApproverType ApproverType `json:"approverType" yaml:"approverType"`
	Approvers    []string     `json:"approvers,omitempty" yaml:"approvers,omitempty"`
	Role         string       `json:"role,omitempty" yaml:"role,omitempty"`
	Level        int          `json:"level,omitempty" yaml:"level,omitempty"`
	SelectRange  *SelectRange `json:"selectRange,omitempty" yaml:"selectRange,omitempty"`
	MultiApprove Policy       `json:"multiApprove,omitempty" yaml:"multiApprove,omitempty"`
	CC           []string     `json:"cc,omitempty" yaml:"cc,omitempty"`
}

func (n *Approve) Type() NodeType   { return NodeApprove }
func (n *Approve) NodeID() string   { return n.ID }
func (n *Approve) NodeName() string { return n.Name }

// Policy returns the consensus policy, defaulting to all.
func (n *Approve) Policy() Policy {
	if n.MultiApprove == "" {
		return PolicyAll
	}
	return n.MultiApprove
}

// SupervisorLevel returns the chain depth, defaulting to 1.
func (n *Approve) SupervisorLevel() int {
	if n.Level <= 0 {
		return DefaultSupervisorLevel
	}
	return n.Level
}

// NewNode returns an empty node of the given type, or nil for unknown types.
func NewNode(nodeType NodeType) Node {
	switch nodeType {
	case NodeSubmit:
		return &Submit{}
	case NodeApprove:
		return &Approve{}
	case NodeEnd:
		return &End{}
	}
	return nil
}

// MarshalNode encodes a node with its type tag.
func MarshalNode(node Node) ([]byte, error) {
	if node == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}
	envelope := map[string]json.RawMessage{}
	if err = json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	envelope["type"] = json.RawMessage(strconv.Quote(string(node.Type())))
	return json.Marshal(envelope)
}

// UnmarshalNode decodes a single {"type": ...} envelope.
func UnmarshalNode(data []byte) (Node, error) {
	var tag struct {
		Type NodeType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	node := NewNode(tag.Type)
	if node == nil {
		return nil, fmt.Errorf("unsupported node type %q", tag.Type)
	}
	if err := json.Unmarshal(data, node); err != nil {
		return nil, fmt.Errorf("invalid %s node: %w", tag.Type, err)
	}
	return node, nil
}

func encodeNodes(nodes []Node) ([]byte, error) {
	buf := bytes.NewBufferString("[")
	for i, node := range nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := MarshalNode(node)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
