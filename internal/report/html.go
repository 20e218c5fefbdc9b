package report

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/xeonx/timeago"

	"github.com/gotrs-io/boardcheck/internal/artifacts"
	"github.com/gotrs-io/boardcheck/internal/runner"
)

//go:embed templates/*.html
var templateFS embed.FS

type embedLoader struct{}

func (embedLoader) Abs(base, name string) string { return path.Clean(name) }

func (embedLoader) Get(name string) (io.Reader, error) {
	data, err := templateFS.ReadFile(path.Join("templates", name))
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

var templates = pongo2.NewSet("report", embedLoader{})

// entry is one scenario as the template sees it.
type entry struct {
	Name       string
	Status     string
	Passed     bool
	Section    string
	Column     string
	Task       string
	Tags       []string
	Title      string
	Observed   []string
	State      string
	Duration   string
	Attempts   int
	Errors     []string
	Log        []string
	Trace      string
	Screenshot string
	Snippet    string
}

func newEntry(res runner.Result, layout *artifacts.Layout) entry {
	e := entry{
		Name:     res.Scenario.Name,
		Status:   "passed",
		Passed:   res.Passed,
		Section:  res.Scenario.Section,
		Column:   res.Scenario.Column,
		Task:     res.Scenario.Task,
		Tags:     res.Scenario.Tags,
		Title:    res.Title,
		Observed: res.Tags,
		State:    res.State.String(),
		Duration: res.Duration.Round(time.Millisecond).String(),
		Attempts: res.Attempts,
	}
	// Diagnostics only for failures and retried scenarios.
	if !res.Passed || res.Attempts > 1 {
		e.Log = res.Log
	}
	if !res.Passed {
		e.Status = "failed"
		for _, se := range runner.StepErrors(res.Err) {
			e.Errors = append(e.Errors, se.Error())
		}
		if len(e.Errors) == 0 && res.Err != nil {
			e.Errors = []string{res.Err.Error()}
		}
		e.Snippet = SanitizeSnippet(res.Snippet)
	} else if res.Attempts > 1 {
		e.Status = "flaky"
	}
	if layout != nil {
		e.Trace = layout.Rel(res.TracePath)
		e.Screenshot = layout.Rel(res.ScreenshotPath)
	}
	return e
}

// RenderHTML writes the HTML report for sum to w.
func RenderHTML(w io.Writer, sum *runner.Summary, baseURL string, layout *artifacts.Layout) error {
	tmpl, err := templates.FromFile("report.html")
	if err != nil {
		return fmt.Errorf("failed to load report template: %w", err)
	}
	entries := make([]entry, len(sum.Results))
	for i, res := range sum.Results {
		entries[i] = newEntry(res, layout)
	}
	ctx := pongo2.Context{
		"run_id":      sum.RunID.String(),
		"base_url":    baseURL,
		"started":     sum.Started.Format(time.RFC1123),
		"started_ago": timeago.English.Format(sum.Started),
		"duration":    sum.Duration.Round(time.Millisecond).String(),
		"passed":      sum.Passed(),
		"failed":      sum.Failed(),
		"flaky":       len(sum.Flaky()),
		"entries":     entries,
	}
	if err := tmpl.ExecuteWriter(ctx, w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteHTML renders the report to the layout's index.html.
func WriteHTML(sum *runner.Summary, baseURL string, layout *artifacts.Layout) (string, error) {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	var buf bytes.Buffer
	if err := RenderHTML(&buf, sum, baseURL, layout); err != nil {
		return "", err
	}
	p := layout.ReportPath()
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p, nil
	}
	return abs, nil
}
