package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	runOpts = runFlags{driver: "playwright", retries: -1}
	printSchema = false
	listOnly = ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "boardcheck dev (commit: none")
}

func TestValidateBuiltInTable(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ built-in table: 8 scenarios across 3 sections")
}

func TestValidateRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenarios:
  - name: one
    section: Web Application
    column: To Do
    task: A
    tags: [Bug]
  - name: one
    section: Web Application
    column: To Do
    task: B
    tags: [Bug]
`), 0o644))

	_, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate name "one"`)
}

func TestValidateSchema(t *testing.T) {
	out, err := execute(t, "validate", "--schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"scenarios"`)
}

func TestList(t *testing.T) {
	out, err := execute(t, "list", "--only", "TC7")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Social media calendar")
	assert.NotContains(t, out, "Implement user authentication")
}

func TestRunOfflineFixture(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BOARDCHECK_REPORT_OUTPUT_DIR", dir)
	t.Setenv("BOARDCHECK_SLOW_MO", "0s")

	out, err := execute(t, "run", "--offline-fixture", "--driver", "http", "--workers", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Running 8 scenarios")
	assert.Contains(t, out, "8 passed")
	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.FileExists(t, filepath.Join(dir, "summary.json"))
}

func TestRunNoMatchingScenarios(t *testing.T) {
	_, err := execute(t, "run", "--offline-fixture", "--driver", "http", "--only", "nothing-matches")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios match")
}
