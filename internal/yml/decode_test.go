package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	type item struct {
		Type  string  `json:"type"`
		Count int     `json:"count"`
		Ratio float64 `json:"ratio"`
		On    bool    `json:"on"`
	}
	type doc struct {
		Name  string            `json:"name"`
		Items []item            `json:"items"`
		Meta  map[string]string `json:"meta"`
	}
	testCases := []struct {
		name     string
		input    string
		expected doc
		hasError bool
	}{
		{
			name: "nested",
			input: `name: expense
items:
  - type: text
    count: 3
    ratio: 0.5
    on: true
meta:
  owner: finance
`,
			expected: doc{Name: "expense", Items: []item{{Type: "text", Count: 3, Ratio: 0.5, On: true}}, Meta: map[string]string{"owner": "finance"}},
		},
		{
			name: "merge keys",
			input: `base: &base
  owner: finance
name: x
meta:
  <<: *base
`,
			expected: doc{Name: "x", Meta: map[string]string{"owner": "finance"}},
		},
		{name: "invalid", input: "name: [", hasError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var actual doc
			err := Unmarshal([]byte(tc.input), &actual)
			if tc.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.EqualValues(t, tc.expected, actual)
		})
	}
}

func TestNode_Lookup(t *testing.T) {
	node, err := Parse([]byte("id: expense\nflow:\n  - type: submit\n"))
	require.NoError(t, err)
	assert.Equal(t, "expense", node.Lookup("id").Value)
	var kinds []string
	err = node.Lookup("flow").Items(func(_ int, item *Node) error {
		kinds = append(kinds, item.Lookup("type").Value)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"submit"}, kinds)
	assert.Nil(t, node.Lookup("missing"))
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(map[string]interface{}{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "id: a\n", string(data))
}
