package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Flatten(t *testing.T) {
	template := &Template{ID: "ecn", Phases: []*Phase{
		{Code: "design", Tasks: []*TaskTemplate{{Code: "T1"}, {Code: "T2"}}},
		{Code: "verify", Tasks: []*TaskTemplate{{Code: "T3", Review: true, Outcomes: []*ReviewOutcome{{Code: "ok", Type: OutcomePass}}}}},
	}}
	refs := template.Flatten()
	require.Len(t, refs, 3)
	assert.Equal(t, "T3", refs[2].Task.Code)
	assert.Equal(t, "verify", refs[2].Phase.Code)
	assert.Equal(t, 2, template.Task("T3").Position)
	assert.Nil(t, template.Task("T9"))
	assert.NotNil(t, template.Task("T3").Task.Outcome("ok"))
}

func TestPipeline_WorkProducts(t *testing.T) {
	p := &Pipeline{Tasks: []*Task{{Code: "T1"}, {Code: "T2"}}}
	assert.True(t, p.AddWorkProduct("T1", "doc-1"))
	assert.True(t, p.AddWorkProduct("T1", "doc-1"))
	assert.False(t, p.AddWorkProduct("T9", "doc-2"))
	assert.Equal(t, []string{"doc-1"}, p.Task("T1").WorkProducts)

	clone := p.Clone()
	clone.Tasks[0].WorkProducts[0] = "changed"
	assert.Equal(t, "doc-1", p.Tasks[0].WorkProducts[0])
	assert.Equal(t, 1, p.Position("T2"))
}
