package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gotrs-io/boardcheck/internal/artifacts"
	"github.com/gotrs-io/boardcheck/internal/runner"
	"github.com/gotrs-io/boardcheck/internal/version"
)

type jsonResult struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	State      string   `json:"state"`
	Kind       string   `json:"kind,omitempty"`
	Error      string   `json:"error,omitempty"`
	Attempts   int      `json:"attempts"`
	DurationMS int64    `json:"duration_ms"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Trace      string   `json:"trace,omitempty"`
	Screenshot string   `json:"screenshot,omitempty"`
}

type jsonSummary struct {
	RunID      string       `json:"run_id"`
	Tool       version.Info `json:"tool"`
	BaseURL    string       `json:"base_url"`
	Started    time.Time    `json:"started"`
	DurationMS int64        `json:"duration_ms"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Results    []jsonResult `json:"results"`
}

// WriteJSON writes a machine-readable summary next to the HTML report.
func WriteJSON(sum *runner.Summary, baseURL string, layout *artifacts.Layout) error {
	out := jsonSummary{
		RunID:      sum.RunID.String(),
		Tool:       version.GetInfo(),
		BaseURL:    baseURL,
		Started:    sum.Started,
		DurationMS: sum.Duration.Milliseconds(),
		Passed:     sum.Passed(),
		Failed:     sum.Failed(),
	}
	for _, res := range sum.Results {
		jr := jsonResult{
			Name:       res.Scenario.Name,
			Passed:     res.Passed,
			State:      res.State.String(),
			Kind:       string(res.Kind()),
			Attempts:   res.Attempts,
			DurationMS: res.Duration.Milliseconds(),
			Title:      res.Title,
			Tags:       res.Tags,
			Trace:      layout.Rel(res.TracePath),
			Screenshot: layout.Rel(res.ScreenshotPath),
		}
		if res.Err != nil {
			jr.Error = res.Err.Error()
		}
		out.Results = append(out.Results, jr)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	return os.WriteFile(layout.SummaryPath(), data, 0o644)
}
