package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/gotrs-io/boardcheck/internal/scenario"
)

// Result is the outcome of one scenario after all attempts.
type Result struct {
	Scenario scenario.Scenario
	State    State
	Passed   bool
	Err      error
	Attempts int
	Duration time.Duration

	// Observed values from the last attempt.
	Title string
	Tags  []string

	TracePath      string
	ScreenshotPath string
	Snippet        string
	Log            []string
}

// Kind returns the failure kind, or "" for a passing result.
func (r *Result) Kind() Kind {
	if r.Err == nil {
		return ""
	}
	return KindOf(r.Err)
}

// Summary is the outcome of a whole run, results in table order.
type Summary struct {
	RunID    uuid.UUID
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

func (s *Summary) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed {
			n++
		}
	}
	return n
}

func (s *Summary) Failed() int {
	return len(s.Results) - s.Passed()
}

// OK reports whether every scenario passed.
func (s *Summary) OK() bool {
	return s.Failed() == 0
}

// Flaky returns the scenarios that passed only after a retry.
func (s *Summary) Flaky() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Passed && r.Attempts > 1 {
			out = append(out, r)
		}
	}
	return out
}
