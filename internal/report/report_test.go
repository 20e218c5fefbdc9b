package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/boardcheck/internal/artifacts"
	"github.com/gotrs-io/boardcheck/internal/runner"
	"github.com/gotrs-io/boardcheck/internal/scenario"
)

func sampleSummary(layout *artifacts.Layout) *runner.Summary {
	tc1 := scenario.Scenario{Name: "TC1 Web: Implement user authentication", Section: "Web Application", Column: "To Do", Task: "Implement user authentication", Tags: []string{"Feature", "High Priority"}}
	tc6 := scenario.Scenario{Name: "TC6 Mobile: App icon design", Section: "Mobile Application", Column: "Done", Task: "App icon design", Tags: []string{"Design", "Urgent"}}
	tc8 := scenario.Scenario{Name: "TC8 Marketing: Email campaign", Section: "Marketing Campaign", Column: "In Progress", Task: "Email campaign", Tags: []string{"Design"}}

	tagErrs := errors.Join(
		&runner.StepError{Kind: runner.KindTagMissing, State: runner.StateCardVisible, Expected: "Urgent", Observed: runner.Absent},
		&runner.StepError{Kind: runner.KindTagMismatch, State: runner.StateCardVisible, Expected: "Design", Observed: "Design <b>v2</b>"},
	)
	return &runner.Summary{
		RunID:    uuid.MustParse("6f1c2a1e-4b7d-4d6a-9d1e-0f7c3b2a1d00"),
		Started:  time.Now().Add(-2 * time.Minute),
		Duration: 90 * time.Second,
		Results: []runner.Result{
			{Scenario: tc1, Passed: true, State: runner.StateVerified, Attempts: 1, Duration: 2 * time.Second,
				Title: tc1.Task, Tags: tc1.Tags, Log: []string{"attempt 1", "tc1 settled"}},
			{Scenario: tc6, Passed: false, State: runner.StateCardVisible, Attempts: 2, Duration: 7 * time.Second,
				Err: tagErrs, Title: tc6.Task, Tags: []string{"Design <b>v2</b>"},
				Log:            []string{"attempt 1", `Found card title: "App icon design"`},
				Snippet:        `<div class="card" onclick="steal()"><h3>App icon design</h3><script>alert(1)</script><span>Design</span></div>`,
				ScreenshotPath: layout.ScreenshotPath(tc6.Name, 2),
				TracePath:      layout.TracePath(tc6.Name, 2)},
			{Scenario: tc8, Passed: true, State: runner.StateVerified, Attempts: 2, Duration: 3 * time.Second,
				Title: tc8.Task, Tags: tc8.Tags, Log: []string{"attempt 1", "attempt 2", "tc8 settled"}},
		},
	}
}

func TestListReporter(t *testing.T) {
	layout := artifacts.NewLayout("out")
	sum := sampleSummary(layout)

	var buf bytes.Buffer
	l := NewList(&buf)
	for _, res := range sum.Results {
		l.Result(res)
	}
	l.Summary(sum)
	out := buf.String()

	assert.Contains(t, out, "  ✓   1 TC1 Web: Implement user authentication (2s)")
	assert.Contains(t, out, "  ✘   2 TC6 Mobile: App icon design (7s) [attempt 2]")
	assert.Contains(t, out, `TagMissing in CardVisible: expected "Urgent", observed "(absent)"`)
	assert.Contains(t, out, `| Found card title: "App icon design"`)
	assert.Contains(t, out, "trace: "+layout.TracePath("TC6 Mobile: App icon design", 2))
	assert.Contains(t, out, "2 passed, 1 failed, 1 flaky (1m30s)")
	assert.Contains(t, out, "✘ TC6 Mobile: App icon design: TagMissing")
}

func TestRenderHTML(t *testing.T) {
	layout := artifacts.NewLayout("out")
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, sampleSummary(layout), "http://localhost:8090/", layout))
	out := buf.String()

	assert.Contains(t, out, "6f1c2a1e-4b7d-4d6a-9d1e-0f7c3b2a1d00")
	assert.Contains(t, out, "2 passed")
	assert.Contains(t, out, "1 flaky")
	assert.Contains(t, out, "2 minutes ago")
	assert.Contains(t, out, `href="data/tc6-mobile-app-icon-design/trace-attempt2.zip"`)
	assert.Contains(t, out, "Design &lt;b&gt;v2&lt;/b&gt;")
	assert.Contains(t, out, "<h3>App icon design</h3>")
	assert.NotContains(t, out, "alert(1)")
	assert.NotContains(t, out, "steal()")
	assert.Equal(t, 1, strings.Count(out, "<details open>"))
	assert.NotContains(t, out, "tc1 settled", "first-try passes carry no log")
	assert.Contains(t, out, "tc8 settled")
}

func TestWriteHTMLAndJSON(t *testing.T) {
	layout := artifacts.NewLayout(filepath.Join(t.TempDir(), "report"))
	sum := sampleSummary(layout)

	p, err := WriteHTML(sum, "http://localhost:8090/", layout)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))
	_, err = os.Stat(p)
	require.NoError(t, err)

	require.NoError(t, WriteJSON(sum, "http://localhost:8090/", layout))
	data, err := os.ReadFile(layout.SummaryPath())
	require.NoError(t, err)
	var got jsonSummary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2, got.Passed)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Results, 3)
	assert.Equal(t, "TagMissing", got.Results[1].Kind)
	assert.Equal(t, "data/tc6-mobile-app-icon-design/failure-attempt2.png", got.Results[1].Screenshot)
	assert.Empty(t, got.Results[0].Kind)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	sum := sampleSummary(artifacts.NewLayout("out"))
	m.Observe(sum)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("flaky")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("TagMissing")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.attempts))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastOK))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastFail))

	path := filepath.Join(t.TempDir(), "boardcheck.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "boardcheck_last_run_success 0")
	assert.Contains(t, string(data), `boardcheck_scenarios_total{result="flaky"} 1`)
}

func TestSanitizeSnippet(t *testing.T) {
	got := SanitizeSnippet(`<div class="column" style="color:red"><h2>Done</h2><form action="/x"><button onclick="x()">Go</button></form><img src=x onerror=alert(1)></div>`)
	assert.Equal(t, `<div class="column"><h2>Done</h2><button>Go</button></div>`, got)
}
