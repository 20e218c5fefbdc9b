package scenario

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)
	require.Equal(t, 8, table.Len())

	tc6 := table.Scenarios[5]
	assert.Equal(t, "TC6 Mobile: App icon design", tc6.Name)
	assert.Equal(t, "Mobile Application", tc6.Section)
	assert.Equal(t, "Done", tc6.Column)
	assert.Equal(t, "App icon design", tc6.Task)
	assert.Equal(t, []string{"Design"}, tc6.Tags)

	assert.Equal(t, []string{"Web Application", "Mobile Application", "Marketing Campaign"}, table.Sections())
}

func TestParseReportsEveryProblem(t *testing.T) {
	src := `
scenarios:
  - name: A
    section: Web Application
    column: To Do
    task: Same task
    tags: [Bug]
  - name: A
    section: Web Application
    column: To Do
    task: Same task
    tags: [Bug, Bug]
`
	_, err := Parse([]byte(src), "dupes.yaml")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "dupes.yaml", verr.Source)
	assert.Len(t, verr.Errors, 3)
	assert.Contains(t, err.Error(), `duplicate name "A"`)
	assert.Contains(t, err.Error(), `duplicate tag "Bug"`)
}

func TestParseSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing tags", "scenarios:\n  - {name: a, section: s, column: c, task: t}\n", "tags"},
		{"blank tag", "scenarios:\n  - {name: a, section: s, column: c, task: t, tags: ['']}\n", "tags"},
		{"blank name", "scenarios:\n  - {name: '  ', section: s, column: c, task: t, tags: [x]}\n", "name"},
		{"unknown field", "scenarios:\n  - {name: a, section: s, column: c, task: t, tags: [x], owner: me}\n", "owner"},
		{"no scenarios", "scenarios: []\n", "scenarios"},
		{"not an object", "- a\n- b\n", "object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "inline")
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseAcceptsCardWithoutTags(t *testing.T) {
	tbl, err := Parse([]byte("scenarios:\n  - {name: a, section: s, column: c, task: t, tags: []}\n"), "inline")
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Empty(t, tbl.Scenarios[0].Tags)
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("scenarios: [\n"), "broken.yaml")
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenarios:
  - name: Only one
    section: Web Application
    column: Done
    task: Ship it
    tags: [Feature]
`), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "Ship it", table.Scenarios[0].Task)

	table, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, table.Len())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFilter(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	mobile := table.Filter("mobile:")
	require.Equal(t, 3, mobile.Len())
	assert.Equal(t, "TC4 Mobile: Push notification system", mobile.Scenarios[0].Name)

	assert.Same(t, table, table.Filter(""))
	assert.Equal(t, 0, table.Filter("nothing like this").Len())
}

func TestSchemaIsValidJSON(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, "object", v["type"])
}
