package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/approvo/service/dao"
)

func TestMatch(t *testing.T) {
	attributes := func(name string) []string {
		switch name {
		case dao.ParamStatus:
			return []string{"pending"}
		case dao.ParamApprover:
			return []string{"u1", "u2"}
		}
		return nil
	}
	testCases := []struct {
		description string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", expect: true},
		{description: "status match", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "pending")}, expect: true},
		{description: "status any of", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "approved", "pending")}, expect: true},
		{description: "status mismatch", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "approved")}},
		{description: "approver and status", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "pending"), dao.NewParameter(dao.ParamApprover, "u2")}, expect: true},
		{description: "approver mismatch", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamApprover, "u3")}},
		{description: "unknown attribute ignored", parameters: []*dao.Parameter{dao.NewParameter("Color", "red")}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, Match(attributes, tc.parameters))
		})
	}
	assert.True(t, FilterByState("pending", []*dao.Parameter{dao.NewParameter(dao.ParamStatus, "pending")}))
}
