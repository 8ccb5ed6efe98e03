package pipeline

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a pipeline task.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "notStarted"
	TaskInProgress TaskStatus = "inProgress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Status is the lifecycle state of a pipeline.
type Status string

const (
	StatusRunning   Status = "running"
	StatusHalted    Status = "halted"
	StatusCompleted Status = "completed"
)

// Action names a history entry.
type Action string

const (
	ActionStarted   Action = "started"
	ActionCompleted Action = "completed"
	ActionOutcome   Action = "outcome"
	ActionRollback  Action = "rollback"
	ActionReopened  Action = "reopened"
)

// Task is the runtime state of a template task.
type Task struct {
	Code            string     `json:"code"`
	Name            string     `json:"name,omitempty"`
	Phase           string     `json:"phase"`
	Owner           string     `json:"owner,omitempty"`
	Review          bool       `json:"review,omitempty"`
	Status          TaskStatus `json:"status"`
	Attempt         int        `json:"attempt"`
	SelectedOutcome string     `json:"selectedOutcome,omitempty"`
	WorkProducts    []string   `json:"workProducts,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// Entry is an append-only history record.
type Entry struct {
	At          time.Time   `json:"at"`
	Action      Action      `json:"action"`
	TaskCode    string      `json:"taskCode,omitempty"`
	OutcomeCode string      `json:"outcomeCode,omitempty"`
	OutcomeType OutcomeType `json:"outcomeType,omitempty"`
	Target      string      `json:"target,omitempty"`
	Reopened    []string    `json:"reopened,omitempty"`
	By          string      `json:"by,omitempty"`
	Comment     string      `json:"comment,omitempty"`
}

// Pipeline is a running instance of a template.
type Pipeline struct {
	ID          string     `json:"id"`
	TemplateID  string     `json:"templateId"`
	Template    *Template  `json:"template"`
	Tasks       []*Task    `json:"tasks"`
	Current     int        `json:"current"`
	Status      Status     `json:"status"`
	History     []*Entry   `json:"history,omitempty"`
	Revision    int        `json:"revision"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Position returns the flattened index of a task code or -1.
func (p *Pipeline) Position(code string) int {
	for i, task := range p.Tasks {
		if task.Code == code {
			return i
		}
	}
	return -1
}

// Task returns a task by code.
func (p *Pipeline) Task(code string) *Task {
	if i := p.Position(code); i != -1 {
		return p.Tasks[i]
	}
	return nil
}

// CurrentTask returns the task at the cursor or nil.
func (p *Pipeline) CurrentTask() *Task {
	if p.Current < 0 || p.Current >= len(p.Tasks) {
		return nil
	}
	return p.Tasks[p.Current]
}

// AddWorkProduct attaches an opaque work product id to a task.
func (p *Pipeline) AddWorkProduct(code, id string) bool {
	task := p.Task(code)
	if task == nil {
		return false
	}
	for _, existing := range task.WorkProducts {
		if existing == id {
			return true
		}
	}
	task.WorkProducts = append(task.WorkProducts, id)
	return true
}

// Append records a history entry.
func (p *Pipeline) Append(entry *Entry) {
	p.History = append(p.History, entry)
}

// Touch bumps the revision ahead of a save.
func (p *Pipeline) Touch(at time.Time) {
	p.Revision++
	p.UpdatedAt = at
}

// Clone returns a deep copy.
func (p *Pipeline) Clone() *Pipeline {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	ret := &Pipeline{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil
	}
	return ret
}

// Clone returns a deep copy.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	ret := &Template{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil
	}
	return ret
}
