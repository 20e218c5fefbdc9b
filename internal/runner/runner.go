// Package runner drives board scenarios through login, navigation and card
// checks, one isolated browser session per attempt.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gotrs-io/boardcheck/internal/artifacts"
	"github.com/gotrs-io/boardcheck/internal/config"
	"github.com/gotrs-io/boardcheck/internal/page"
	"github.com/gotrs-io/boardcheck/internal/scenario"
)

// Credentials log in to the board.
type Credentials struct {
	Identifier string
	Password   string
}

// Options tune a Runner. Zero values take the defaults of a fresh config.
type Options struct {
	Credentials    Credentials
	HomeSection    string
	FirstColumn    string
	TagSelector    string
	Timeout        time.Duration
	ResolveTimeout time.Duration
	SettleDelay    time.Duration
	Retries        int
	Workers        int
	Trace          string
	Screenshots    bool
	// Artifacts receives traces and screenshots; nil disables both.
	Artifacts *artifacts.Layout
	Logger    *log.Logger
	// OnResult is called once per scenario as soon as it finishes. Calls
	// are serialized.
	OnResult func(Result)
}

// OptionsFromConfig maps a loaded configuration onto runner options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Credentials:    Credentials{Identifier: cfg.Credentials.Identifier, Password: cfg.Credentials.Password},
		HomeSection:    cfg.HomeSection,
		FirstColumn:    cfg.FirstColumn,
		TagSelector:    cfg.TagSelector,
		Timeout:        cfg.Timeout,
		ResolveTimeout: cfg.ResolveTimeout,
		SettleDelay:    cfg.SettleDelay,
		Retries:        cfg.Retries,
		Workers:        cfg.Workers,
		Trace:          cfg.Trace,
		Screenshots:    cfg.Screenshots,
		Artifacts:      artifacts.NewLayout(cfg.Report.OutputDir),
	}
}

func (o *Options) setDefaults() {
	if o.Credentials.Identifier == "" && o.Credentials.Password == "" {
		o.Credentials = Credentials{Identifier: "admin", Password: "password123"}
	}
	if o.HomeSection == "" {
		o.HomeSection = "Web Application"
	}
	if o.FirstColumn == "" {
		o.FirstColumn = "To Do"
	}
	if o.TagSelector == "" {
		o.TagSelector = "span"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = 5 * time.Second
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Trace == "" {
		o.Trace = config.TraceOnFirstRetry
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stdout, "[runner] ", log.LstdFlags)
	}
}

// Runner executes scenario tables against one driver.
type Runner struct {
	driver page.Driver
	opts   Options
	logger *log.Logger
	mu     sync.Mutex
}

// New returns a runner over driver.
func New(driver page.Driver, opts Options) *Runner {
	opts.setDefaults()
	return &Runner{driver: driver, opts: opts, logger: opts.Logger}
}

// Run executes every scenario of table on the worker pool and returns the
// results in table order.
func (r *Runner) Run(ctx context.Context, table *scenario.Table) *Summary {
	sum := &Summary{RunID: uuid.New(), Started: time.Now()}
	sum.Results = make([]Result, len(table.Scenarios))
	r.logger.Printf("Run %s: %d scenarios on %d workers", sum.RunID, len(table.Scenarios), r.opts.Workers)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := r.RunScenario(ctx, table.Scenarios[i])
				sum.Results[i] = res
				r.report(res)
			}
		}()
	}
	for i := range table.Scenarios {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sum.Duration = time.Since(sum.Started)
	r.logger.Printf("Run %s finished in %v: %d passed, %d failed",
		sum.RunID, sum.Duration.Round(time.Millisecond), sum.Passed(), sum.Failed())
	return sum
}

func (r *Runner) report(res Result) {
	if r.opts.OnResult == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.OnResult(res)
}

// RunScenario runs one scenario, retrying the whole scenario up to the
// configured number of times.
func (r *Runner) RunScenario(ctx context.Context, s scenario.Scenario) Result {
	res := Result{Scenario: s}
	start := time.Now()
	for n := 1; n <= r.opts.Retries+1; n++ {
		if err := ctx.Err(); err != nil {
			if res.Err == nil {
				res.Err = &StepError{Kind: KindTimeout, State: StateLoggedOut, Scenario: s.Name, Err: err}
			}
			break
		}
		res.Attempts = n
		if n > 1 {
			r.logger.Printf("Retrying %q (attempt %d)", s.Name, n)
		}
		r.attempt(ctx, s, n, &res)
		if res.Passed {
			break
		}
	}
	res.Duration = time.Since(start)

	if res.Passed {
		r.logger.Printf("✓ %s (%v)", s.Name, res.Duration.Round(time.Millisecond))
	} else {
		r.logger.Printf("✘ %s (%v): %v", s.Name, res.Duration.Round(time.Millisecond), res.Err)
	}
	return res
}

func (r *Runner) traceAttempt(n int) bool {
	switch r.opts.Trace {
	case config.TraceOn, config.TraceRetainOnFailure:
		return true
	case config.TraceOnFirstRetry:
		return n == 2
	}
	return false
}

// attempt runs one isolated attempt and records its outcome in res.
func (r *Runner) attempt(parent context.Context, s scenario.Scenario, n int, res *Result) {
	ctx, cancel := context.WithTimeout(parent, r.opts.Timeout)
	defer cancel()

	res.Passed, res.Err = false, nil
	res.Title, res.Tags = "", nil
	res.State = StateLoggedOut
	res.Snippet, res.ScreenshotPath = "", ""
	res.Log = append(res.Log, fmt.Sprintf("attempt %d", n))

	sess, err := r.driver.NewSession(ctx)
	if err != nil {
		res.Err = fmt.Errorf("could not open session: %w", err)
		return
	}
	closed := false
	closeSession := func() {
		if !closed {
			closed = true
			if err := sess.Close(); err != nil {
				r.logger.Printf("close session for %q: %v", s.Name, err)
			}
		}
	}
	defer closeSession()

	tracing := r.traceAttempt(n) && r.opts.Artifacts != nil
	if tracing {
		if err := r.opts.Artifacts.Prepare(s.Name); err == nil {
			if err := sess.StartTrace(s.Name); err != nil {
				r.logger.Printf("trace %q: %v", s.Name, err)
				tracing = false
			}
		} else {
			tracing = false
		}
	}

	c := newCheck(r, s, sess.Page())
	done := make(chan error, 1)
	go func() { done <- c.run(ctx) }()

	var runErr error
	select {
	case runErr = <-done:
		if runErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
			runErr = &StepError{Kind: KindTimeout, State: c.State(), Scenario: s.Name, Err: runErr}
		}
	case <-ctx.Done():
		// Closing the session unblocks whatever driver call is in flight.
		closeSession()
		inflight := <-done
		if inflight == nil {
			inflight = ctx.Err()
		}
		runErr = &StepError{Kind: KindTimeout, State: c.State(), Scenario: s.Name, Err: inflight}
	}

	res.State = c.State()
	res.Title, res.Tags = c.observed()
	res.Log = append(res.Log, c.lines()...)
	res.Passed = runErr == nil
	res.Err = runErr

	if !res.Passed && !closed {
		r.captureFailure(s, n, sess, c, res)
	}
	if tracing && !closed {
		path := r.opts.Artifacts.TracePath(s.Name, n)
		if res.Passed && r.opts.Trace == config.TraceRetainOnFailure {
			path = ""
		}
		if err := sess.StopTrace(path); err != nil {
			r.logger.Printf("trace %q: %v", s.Name, err)
		} else if path != "" {
			res.TracePath = path
		}
	}
}

const maxSnippet = 16 << 10

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (r *Runner) captureFailure(s scenario.Scenario, n int, sess page.Session, c *check, res *Result) {
	if snippet, err := c.snippet(); err == nil {
		res.Snippet = truncate(snippet, maxSnippet)
	}
	for _, line := range sess.Console() {
		res.Log = append(res.Log, "console: "+line)
	}
	if !r.opts.Screenshots || r.opts.Artifacts == nil {
		return
	}
	if err := r.opts.Artifacts.Prepare(s.Name); err != nil {
		r.logger.Printf("screenshot %q: %v", s.Name, err)
		return
	}
	path := r.opts.Artifacts.ScreenshotPath(s.Name, n)
	if err := sess.Page().Screenshot(path); err != nil {
		if !errors.Is(err, errors.ErrUnsupported) {
			r.logger.Printf("screenshot %q: %v", s.Name, err)
		}
		return
	}
	res.ScreenshotPath = path
}
