package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/model/form"
)

func sampleDefinition() *Definition {
	return &Definition{
		ID:   "expense",
		Name: "Expense claim",
		Form: form.Schema{
			&form.Money{Base: form.Base{Key: "amount", Required: true}},
		},
		Flow: flow.Schema{Nodes: []flow.Node{
			&flow.Submit{ID: "start"},
			&flow.Approve{ID: "manager", ApproverType: flow.ApproverSupervisor},
			&flow.End{ID: "done"},
		}},
	}
}

func TestDefinition_Validate(t *testing.T) {
	def := sampleDefinition()
	assert.NoError(t, def.Validate())

	def.Name = ""
	def.Form = append(def.Form, &form.Select{Base: form.Base{Key: "kind"}})
	def.Flow.Nodes = def.Flow.Nodes[:2]
	err := def.Validate()
	var validation *errs.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Contains(t, validation.Fields, "name")
	assert.Contains(t, validation.Fields, "form.kind.options")
	assert.Contains(t, validation.Fields, "flow.end")
}

func TestDefinition_JSONAndClone(t *testing.T) {
	def := sampleDefinition()
	def.Version = 2
	def.ApplyDefaults()
	assert.Equal(t, "expense@v2", def.Key())

	data, err := json.Marshal(def)
	require.NoError(t, err)
	var decoded Definition
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, def, &decoded)

	clone := def.Clone()
	clone.Flow.ApproveNodes()[0].ApproverType = flow.ApproverSubmitter
	assert.Equal(t, flow.ApproverSupervisor, def.Flow.ApproveNodes()[0].ApproverType)
}

func TestVisibility_Allows(t *testing.T) {
	testCases := []struct {
		description string
		visibility  *Visibility
		user        string
		departments []string
		expect      bool
	}{
		{description: "nil", user: "u1", expect: true},
		{description: "everyone", visibility: &Visibility{Scope: ScopeEveryone}, user: "u1", expect: true},
		{description: "allowed user", visibility: &Visibility{Scope: ScopeAllowList, Users: []string{"u1"}}, user: "u1", expect: true},
		{description: "ancestor department", visibility: &Visibility{Scope: ScopeAllowList, Departments: []string{"eng"}}, user: "u2", departments: []string{"eng-web", "eng"}, expect: true},
		{description: "excluded", visibility: &Visibility{Scope: ScopeAllowList, Users: []string{"u1"}}, user: "u3", departments: []string{"sales"}},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.visibility.Allows(tc.user, tc.departments))
		})
	}
}
