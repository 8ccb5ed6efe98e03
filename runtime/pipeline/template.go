// Package pipeline models multi-phase task pipelines whose review tasks
// select outcomes, including outcomes rolling the pipeline back to an
// earlier task.
package pipeline

// OutcomeType classifies a review outcome.
type OutcomeType string

const (
	OutcomePass         OutcomeType = "pass"
	OutcomeFail         OutcomeType = "fail"
	OutcomeFailRollback OutcomeType = "fail_rollback"
)

// Valid reports whether t is a known outcome type.
func (t OutcomeType) Valid() bool {
	return t == OutcomePass || t == OutcomeFail || t == OutcomeFailRollback
}

// ReviewOutcome is one selectable result of a review task.
type ReviewOutcome struct {
	Code               string      `json:"code" yaml:"code"`
	Name               string      `json:"name,omitempty" yaml:"name,omitempty"`
	Type               OutcomeType `json:"type" yaml:"type"`
	RollbackToTaskCode string      `json:"rollbackToTaskCode,omitempty" yaml:"rollbackToTaskCode,omitempty"`
}

// TaskTemplate declares one task of a phase.
type TaskTemplate struct {
	Code     string           `json:"code" yaml:"code"`
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Owner    string           `json:"owner,omitempty" yaml:"owner,omitempty"`
	Review   bool             `json:"review,omitempty" yaml:"review,omitempty"`
	Outcomes []*ReviewOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// Outcome returns an outcome by code.
func (t *TaskTemplate) Outcome(code string) *ReviewOutcome {
	for _, outcome := range t.Outcomes {
		if outcome.Code == code {
			return outcome
		}
	}
	return nil
}

// Phase groups ordered tasks.
type Phase struct {
	Code  string          `json:"code" yaml:"code"`
	Name  string          `json:"name,omitempty" yaml:"name,omitempty"`
	Tasks []*TaskTemplate `json:"tasks" yaml:"tasks"`
}

// Template declares a pipeline: phases in order, tasks in order within a phase.
type Template struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Phases []*Phase `json:"phases" yaml:"phases"`
}

// TaskRef pairs a task template with its phase and flattened position.
type TaskRef struct {
	Position int
	Phase    *Phase
	Task     *TaskTemplate
}

// Flatten returns tasks in pipeline order.
func (t *Template) Flatten() []*TaskRef {
	var ret []*TaskRef
	for _, phase := range t.Phases {
		if phase == nil {
			continue
		}
		for _, task := range phase.Tasks {
			if task == nil {
				continue
			}
			ret = append(ret, &TaskRef{Position: len(ret), Phase: phase, Task: task})
		}
	}
	return ret
}

// Task returns the template of a task code.
func (t *Template) Task(code string) *TaskRef {
	for _, ref := range t.Flatten() {
		if ref.Task.Code == code {
			return ref
		}
	}
	return nil
}
