// Package report renders run summaries: a console list, a static HTML
// report, a JSON summary and Prometheus textfile metrics.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gotrs-io/boardcheck/internal/runner"
)

// List prints one line per finished scenario, Playwright list style, with
// failure details indented below.
type List struct {
	w io.Writer

	mu sync.Mutex
	n  int
}

func NewList(w io.Writer) *List {
	return &List{w: w}
}

// Result prints a finished scenario. Safe to use as runner.Options.OnResult.
func (l *List) Result(res runner.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.n++

	mark := "✓"
	if !res.Passed {
		mark = "✘"
	}
	line := fmt.Sprintf("  %s %3d %s (%s)", mark, l.n, res.Scenario.Name, res.Duration.Round(time.Millisecond))
	if res.Attempts > 1 {
		line += fmt.Sprintf(" [attempt %d]", res.Attempts)
	}
	fmt.Fprintln(l.w, line)
	if res.Passed {
		return
	}

	for _, se := range runner.StepErrors(res.Err) {
		fmt.Fprintf(l.w, "        %s\n", se)
	}
	if len(runner.StepErrors(res.Err)) == 0 && res.Err != nil {
		fmt.Fprintf(l.w, "        %v\n", res.Err)
	}
	for _, entry := range res.Log {
		fmt.Fprintf(l.w, "        | %s\n", entry)
	}
	if res.ScreenshotPath != "" {
		fmt.Fprintf(l.w, "        screenshot: %s\n", res.ScreenshotPath)
	}
	if res.TracePath != "" {
		fmt.Fprintf(l.w, "        trace: %s\n", res.TracePath)
	}
}

// Summary prints the closing totals.
func (l *List) Summary(sum *runner.Summary) {
	fmt.Fprintln(l.w)
	parts := []string{fmt.Sprintf("%d passed", sum.Passed())}
	if f := sum.Failed(); f > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", f))
	}
	if fl := len(sum.Flaky()); fl > 0 {
		parts = append(parts, fmt.Sprintf("%d flaky", fl))
	}
	fmt.Fprintf(l.w, "  %s (%s)\n", strings.Join(parts, ", "), sum.Duration.Round(time.Millisecond))
	for _, res := range sum.Results {
		if !res.Passed {
			fmt.Fprintf(l.w, "    ✘ %s: %s\n", res.Scenario.Name, kindLabel(res))
		}
	}
}

func kindLabel(res runner.Result) string {
	if k := res.Kind(); k != "" {
		return string(k)
	}
	return "Error"
}
