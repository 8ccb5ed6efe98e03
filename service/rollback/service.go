// Package rollback drives task pipelines: starting them, completing tasks
// and applying review outcomes, including rollbacks to an earlier task.
package rollback

import (
	"fmt"
	"time"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/runtime/pipeline"
)

// Reopened identifies a task reset by a rollback and who owns it.
type Reopened struct {
	TaskCode string `json:"taskCode"`
	Owner    string `json:"owner,omitempty"`
	Attempt  int    `json:"attempt"`
}

// Result describes the effect of a pipeline operation.
type Result struct {
	PipelineID string                  `json:"pipelineId"`
	TaskCode   string                  `json:"taskCode"`
	Outcome    *pipeline.ReviewOutcome `json:"outcome,omitempty"`
	Status     pipeline.Status         `json:"status"`
	Current    string                  `json:"current,omitempty"`
	Reopened   []*Reopened             `json:"reopened,omitempty"`
}

// ValidateTemplate checks template structure and rollback targets.
func ValidateTemplate(template *pipeline.Template) error {
	if template == nil {
		return fmt.Errorf("template was nil")
	}
	issues := errs.NewValidationError()
	if template.ID == "" {
		issues.Add("id", "is required")
	}
	if len(template.Phases) == 0 {
		issues.Add("phases", "at least one phase is required")
	}
	codes := map[string]bool{}
	for i, phase := range template.Phases {
		path := fmt.Sprintf("phases[%d]", i)
		if phase == nil {
			issues.Add(path, "is empty")
			continue
		}
		if phase.Code == "" {
			issues.Add(path+".code", "is required")
		}
		if len(phase.Tasks) == 0 {
			issues.Add(path+".tasks", "at least one task is required")
		}
		for j, task := range phase.Tasks {
			taskPath := fmt.Sprintf("%s.tasks[%d]", path, j)
			if task == nil {
				issues.Add(taskPath, "is empty")
				continue
			}
			switch {
			case task.Code == "":
				issues.Add(taskPath+".code", "is required")
			case codes[task.Code]:
				issues.Add(taskPath+".code", "duplicate task code %q", task.Code)
			}
			codes[task.Code] = true
			checkOutcomes(taskPath, task, issues)
		}
	}
	if issues.HasIssues() {
		return issues
	}
	return checkTargets(template)
}

func checkOutcomes(path string, task *pipeline.TaskTemplate, issues *errs.ValidationError) {
	if task.Review && len(task.Outcomes) == 0 {
		issues.Add(path+".outcomes", "review task requires outcomes")
	}
	if !task.Review && len(task.Outcomes) > 0 {
		issues.Add(path+".outcomes", "only review tasks declare outcomes")
	}
	seen := map[string]bool{}
	for k, outcome := range task.Outcomes {
		outcomePath := fmt.Sprintf("%s.outcomes[%d]", path, k)
		if outcome == nil {
			issues.Add(outcomePath, "is empty")
			continue
		}
		switch {
		case outcome.Code == "":
			issues.Add(outcomePath+".code", "is required")
		case seen[outcome.Code]:
			issues.Add(outcomePath+".code", "duplicate outcome code %q", outcome.Code)
		}
		seen[outcome.Code] = true
		if !outcome.Type.Valid() {
			issues.Add(outcomePath+".type", "unsupported outcome type %q", outcome.Type)
		}
	}
}

func checkTargets(template *pipeline.Template) error {
	refs := template.Flatten()
	position := make(map[string]int, len(refs))
	for _, ref := range refs {
		position[ref.Task.Code] = ref.Position
	}
	for _, ref := range refs {
		for _, outcome := range ref.Task.Outcomes {
			if outcome.Type != pipeline.OutcomeFailRollback {
				continue
			}
			target := outcome.RollbackToTaskCode
			reason := ""
			pos, ok := position[target]
			switch {
			case target == "":
				reason = "is missing"
			case !ok:
				reason = "is not a task of the template"
			case target == ref.Task.Code:
				reason = "must not be the reviewed task itself"
			case pos > ref.Position:
				reason = "must precede the reviewed task"
			}
			if reason != "" {
				return &errs.RollbackTargetError{TaskCode: ref.Task.Code, OutcomeCode: outcome.Code, Target: target, Reason: reason}
			}
		}
	}
	return nil
}

// Start creates a running pipeline with its first task in progress.
func Start(template *pipeline.Template, id string) (*pipeline.Pipeline, error) {
	if err := ValidateTemplate(template); err != nil {
		return nil, err
	}
	now := clock.Now()
	ret := &pipeline.Pipeline{
		ID:         id,
		TemplateID: template.ID,
		Template:   template.Clone(),
		Status:     pipeline.StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, ref := range template.Flatten() {
		ret.Tasks = append(ret.Tasks, &pipeline.Task{
			Code:    ref.Task.Code,
			Name:    ref.Task.Name,
			Phase:   ref.Phase.Code,
			Owner:   ref.Task.Owner,
			Review:  ref.Task.Review,
			Status:  pipeline.TaskNotStarted,
			Attempt: 1,
		})
	}
	ret.Append(&pipeline.Entry{At: now, Action: pipeline.ActionStarted})
	begin(ret, 0, now)
	return ret, nil
}

func begin(p *pipeline.Pipeline, position int, now time.Time) {
	p.Current = position
	task := p.Tasks[position]
	task.Status = pipeline.TaskInProgress
	task.StartedAt = &now
	task.CompletedAt = nil
}

// current returns task code when it is the in-progress task of a running pipeline.
func current(p *pipeline.Pipeline, code, action string) (*pipeline.Task, error) {
	task := p.Task(code)
	if task == nil {
		return nil, errs.NotFound("task", code)
	}
	if p.Status != pipeline.StatusRunning {
		return nil, &errs.StateError{Entity: "pipeline " + p.ID, State: string(p.Status), Action: action}
	}
	if p.CurrentTask() != task || task.Status != pipeline.TaskInProgress {
		return nil, &errs.StateError{Entity: "task " + code, State: string(task.Status), Action: action}
	}
	return task, nil
}

// Complete finishes a non review task and moves to the next one.
func Complete(p *pipeline.Pipeline, code, by string) (*Result, error) {
	task, err := current(p, code, "complete")
	if err != nil {
		return nil, err
	}
	if task.Review {
		issues := errs.NewValidationError()
		issues.Add("outcome", "review task %s requires an outcome", code)
		return nil, issues
	}
	now := clock.Now()
	p.Append(&pipeline.Entry{At: now, Action: pipeline.ActionCompleted, TaskCode: code, By: by})
	finish(p, task, now)
	return result(p, code, nil), nil
}

func finish(p *pipeline.Pipeline, task *pipeline.Task, now time.Time) {
	task.Status = pipeline.TaskCompleted
	task.CompletedAt = &now
	if next := p.Current + 1; next < len(p.Tasks) {
		begin(p, next, now)
		return
	}
	p.Status = pipeline.StatusCompleted
	p.CompletedAt = &now
}

// ApplyOutcome selects a review outcome for the in-progress review task.
func ApplyOutcome(p *pipeline.Pipeline, code, outcomeCode, by, comment string) (*Result, error) {
	task, err := current(p, code, "select outcome")
	if err != nil {
		return nil, err
	}
	var outcome *pipeline.ReviewOutcome
	if p.Template != nil {
		if ref := p.Template.Task(code); ref != nil {
			outcome = ref.Task.Outcome(outcomeCode)
		}
	}
	if !task.Review || outcome == nil {
		issues := errs.NewValidationError()
		issues.Add("outcome", "unknown outcome %q for task %s", outcomeCode, code)
		return nil, issues
	}
	target := -1
	if outcome.Type == pipeline.OutcomeFailRollback {
		if target = p.Position(outcome.RollbackToTaskCode); target == -1 || target >= p.Current {
			return nil, &errs.RollbackTargetError{TaskCode: code, OutcomeCode: outcome.Code, Target: outcome.RollbackToTaskCode, Reason: "must precede the reviewed task"}
		}
	}
	now := clock.Now()
	task.SelectedOutcome = outcome.Code
	p.Append(&pipeline.Entry{
		At:          now,
		Action:      pipeline.ActionOutcome,
		TaskCode:    code,
		OutcomeCode: outcome.Code,
		OutcomeType: outcome.Type,
		Target:      outcome.RollbackToTaskCode,
		By:          by,
		Comment:     comment,
	})
	var reopened []*Reopened
	switch outcome.Type {
	case pipeline.OutcomePass:
		finish(p, task, now)
	case pipeline.OutcomeFail:
		task.Status = pipeline.TaskFailed
		task.CompletedAt = &now
		p.Status = pipeline.StatusHalted
	case pipeline.OutcomeFailRollback:
		reopened = reopen(p, target, p.Current, now)
		p.Append(&pipeline.Entry{At: now, Action: pipeline.ActionRollback, TaskCode: code, Target: outcome.RollbackToTaskCode, Reopened: codes(reopened), By: by})
	}
	ret := result(p, code, outcome)
	ret.Reopened = reopened
	return ret, nil
}

// reopen resets tasks from..to, keeping work products, and resumes at from.
func reopen(p *pipeline.Pipeline, from, to int, now time.Time) []*Reopened {
	var ret []*Reopened
	for i := from; i <= to; i++ {
		task := p.Tasks[i]
		task.Status = pipeline.TaskNotStarted
		task.Attempt++
		task.SelectedOutcome = ""
		task.StartedAt = nil
		task.CompletedAt = nil
		ret = append(ret, &Reopened{TaskCode: task.Code, Owner: task.Owner, Attempt: task.Attempt})
	}
	p.Status = pipeline.StatusRunning
	p.CompletedAt = nil
	begin(p, from, now)
	return ret
}

// Reopen resumes a halted pipeline at code, resetting every task from code
// through the failed one.
func Reopen(p *pipeline.Pipeline, code, by string) (*Result, error) {
	target := p.Position(code)
	if target == -1 {
		return nil, errs.NotFound("task", code)
	}
	if p.Status != pipeline.StatusHalted {
		return nil, &errs.StateError{Entity: "pipeline " + p.ID, State: string(p.Status), Action: "reopen"}
	}
	if target > p.Current {
		return nil, &errs.RollbackTargetError{TaskCode: p.Tasks[p.Current].Code, Target: code, Reason: "must not follow the failed task"}
	}
	now := clock.Now()
	reopened := reopen(p, target, p.Current, now)
	p.Append(&pipeline.Entry{At: now, Action: pipeline.ActionReopened, TaskCode: code, Target: code, Reopened: codes(reopened), By: by})
	ret := result(p, code, nil)
	ret.Reopened = reopened
	return ret, nil
}

func codes(reopened []*Reopened) []string {
	ret := make([]string, 0, len(reopened))
	for _, item := range reopened {
		ret = append(ret, item.TaskCode)
	}
	return ret
}

func result(p *pipeline.Pipeline, code string, outcome *pipeline.ReviewOutcome) *Result {
	ret := &Result{PipelineID: p.ID, TaskCode: code, Outcome: outcome, Status: p.Status}
	if p.Status == pipeline.StatusRunning {
		if task := p.CurrentTask(); task != nil {
			ret.Current = task.Code
		}
	}
	return ret
}
