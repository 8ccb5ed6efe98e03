package rollback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/runtime/pipeline"
)

func ecnTemplate() *pipeline.Template {
	return &pipeline.Template{
		ID: "ecn",
		Phases: []*pipeline.Phase{
			{Code: "design", Tasks: []*pipeline.TaskTemplate{
				{Code: "T1", Owner: "designer"},
				{Code: "T2", Owner: "drafter"},
			}},
			{Code: "verify", Tasks: []*pipeline.TaskTemplate{
				{Code: "T3", Owner: "reviewer", Review: true, Outcomes: []*pipeline.ReviewOutcome{
					{Code: "ok", Type: pipeline.OutcomePass},
					{Code: "scrap", Type: pipeline.OutcomeFail},
					{Code: "rework", Type: pipeline.OutcomeFailRollback, RollbackToTaskCode: "T1"},
				}},
			}},
		},
	}
}

func TestValidateTemplate(t *testing.T) {
	var testCases = []struct {
		description string
		mutate      func(tmpl *pipeline.Template)
		sentinel    error
		field       string
	}{
		{description: "valid"},
		{description: "duplicate code", mutate: func(tmpl *pipeline.Template) { tmpl.Phases[0].Tasks[1].Code = "T1" }, sentinel: errs.ErrValidation, field: "phases[0].tasks[1].code"},
		{description: "review without outcomes", mutate: func(tmpl *pipeline.Template) { tmpl.Phases[1].Tasks[0].Outcomes = nil }, sentinel: errs.ErrValidation, field: "phases[1].tasks[0].outcomes"},
		{description: "outcomes on work task", mutate: func(tmpl *pipeline.Template) {
			tmpl.Phases[0].Tasks[0].Outcomes = []*pipeline.ReviewOutcome{{Code: "x", Type: pipeline.OutcomePass}}
		}, sentinel: errs.ErrValidation, field: "phases[0].tasks[0].outcomes"},
		{description: "missing target", mutate: func(tmpl *pipeline.Template) { tmpl.Phases[1].Tasks[0].Outcomes[2].RollbackToTaskCode = "" }, sentinel: errs.ErrRollbackTarget},
		{description: "unknown target", mutate: func(tmpl *pipeline.Template) { tmpl.Phases[1].Tasks[0].Outcomes[2].RollbackToTaskCode = "T9" }, sentinel: errs.ErrRollbackTarget},
		{description: "self target", mutate: func(tmpl *pipeline.Template) { tmpl.Phases[1].Tasks[0].Outcomes[2].RollbackToTaskCode = "T3" }, sentinel: errs.ErrRollbackTarget},
		{description: "later target", mutate: func(tmpl *pipeline.Template) {
			tmpl.Phases[1].Tasks = append(tmpl.Phases[1].Tasks, &pipeline.TaskTemplate{Code: "T4"})
			tmpl.Phases[1].Tasks[0].Outcomes[2].RollbackToTaskCode = "T4"
		}, sentinel: errs.ErrRollbackTarget},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			tmpl := ecnTemplate()
			if testCase.mutate != nil {
				testCase.mutate(tmpl)
			}
			err := ValidateTemplate(tmpl)
			if testCase.sentinel == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, testCase.sentinel), err.Error())
			if testCase.field != "" {
				var validation *errs.ValidationError
				require.True(t, errors.As(err, &validation))
				assert.Contains(t, validation.Fields, testCase.field)
			}
		})
	}
}

func TestApplyOutcome_Rollback(t *testing.T) {
	p, err := Start(ecnTemplate(), "p1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskInProgress, p.Tasks[0].Status)

	require.True(t, p.AddWorkProduct("T1", "drawing-1"))
	_, err = Complete(p, "T1", "designer")
	require.NoError(t, err)
	require.True(t, p.AddWorkProduct("T2", "bom-1"))
	result, err := Complete(p, "T2", "drafter")
	require.NoError(t, err)
	assert.Equal(t, "T3", result.Current)

	result, err = ApplyOutcome(p, "T3", "rework", "reviewer", "tolerances off")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusRunning, p.Status)
	assert.Equal(t, "T1", result.Current)
	assert.Equal(t, []*Reopened{
		{TaskCode: "T1", Owner: "designer", Attempt: 2},
		{TaskCode: "T2", Owner: "drafter", Attempt: 2},
		{TaskCode: "T3", Owner: "reviewer", Attempt: 2},
	}, result.Reopened)

	assert.Equal(t, pipeline.TaskInProgress, p.Tasks[0].Status)
	assert.Equal(t, pipeline.TaskNotStarted, p.Tasks[1].Status)
	assert.Equal(t, pipeline.TaskNotStarted, p.Tasks[2].Status)
	assert.Equal(t, []string{"drawing-1"}, p.Tasks[0].WorkProducts)
	assert.Equal(t, []string{"bom-1"}, p.Tasks[1].WorkProducts)

	var outcomeEntry *pipeline.Entry
	for _, entry := range p.History {
		if entry.Action == pipeline.ActionOutcome {
			outcomeEntry = entry
		}
	}
	require.NotNil(t, outcomeEntry)
	assert.Equal(t, "rework", outcomeEntry.OutcomeCode)
	assert.Equal(t, "tolerances off", outcomeEntry.Comment)
	last := p.History[len(p.History)-1]
	assert.Equal(t, pipeline.ActionRollback, last.Action)
	assert.Equal(t, []string{"T1", "T2", "T3"}, last.Reopened)
}

func TestApplyOutcome_PassAndFail(t *testing.T) {
	p, err := Start(ecnTemplate(), "p1")
	require.NoError(t, err)
	_, err = ApplyOutcome(p, "T1", "ok", "x", "")
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = Complete(p, "T2", "x")
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
	_, err = Complete(p, "T9", "x")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = Complete(p, "T1", "x")
	require.NoError(t, err)
	_, err = Complete(p, "T2", "x")
	require.NoError(t, err)
	_, err = Complete(p, "T3", "x")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	halted := p.Clone()
	result, err := ApplyOutcome(halted, "T3", "scrap", "reviewer", "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusHalted, result.Status)
	assert.Equal(t, pipeline.TaskFailed, halted.Tasks[2].Status)
	_, err = ApplyOutcome(halted, "T3", "ok", "reviewer", "")
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	result, err = Reopen(halted, "T2", "lead")
	require.NoError(t, err)
	assert.Equal(t, "T2", result.Current)
	assert.Len(t, result.Reopened, 2)
	assert.Equal(t, pipeline.TaskCompleted, halted.Tasks[0].Status)

	result, err = ApplyOutcome(p, "T3", "ok", "reviewer", "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, result.Status)
	assert.NotNil(t, p.CompletedAt)
	_, err = Reopen(p, "T1", "lead")
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}
