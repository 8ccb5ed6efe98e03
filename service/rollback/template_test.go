package rollback

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/runtime/pipeline"
)

const ecnYAML = `phases:
  - code: design
    tasks:
      - code: T1
        owner: designer
  - code: verify
    tasks:
      - code: T2
        owner: reviewer
        review: true
        outcomes:
          - code: ok
            type: pass
          - code: rework
            type: fail_rollback
            rollbackToTaskCode: T1
`

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ecn.yaml"), []byte(ecnYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("phases: []\n"), 0o644))

	var testCases = []struct {
		description string
		file        string
		sentinel    error
		expectID    string
	}{
		{description: "id from file name", file: "ecn.yaml", expectID: "ecn"},
		{description: "invalid structure", file: "broken.yaml", sentinel: errs.ErrValidation},
	}
	for _, testCase := range testCases {
		template, err := LoadTemplate(context.Background(), afs.New(), filepath.Join(dir, testCase.file))
		if testCase.sentinel != nil {
			assert.ErrorIs(t, err, testCase.sentinel, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expectID, template.ID, testCase.description)
		ref := template.Task("T2")
		require.NotNil(t, ref, testCase.description)
		assert.Equal(t, pipeline.OutcomeFailRollback, ref.Task.Outcome("rework").Type, testCase.description)
	}
}
