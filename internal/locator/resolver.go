// Package locator resolves logical board names (sections, columns, cards) to
// page elements by trying ordered strategies until one matches.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gotrs-io/boardcheck/internal/page"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// ErrNotFound matches every *NotFoundError with errors.Is.
var ErrNotFound = errors.New("element not found")

// NotFoundError reports a logical name that no strategy could resolve within
// the wait budget.
type NotFoundError struct {
	Category Category
	Name     string
	Tried    []string
	Waited   time.Duration
	Err      error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found after %s (tried %s)",
		e.Category, e.Name, e.Waited.Round(time.Millisecond), strings.Join(e.Tried, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// Resolution is a resolved element and the strategy that produced it.
type Resolution struct {
	Locator  page.Locator
	Strategy string
}

// Resolver polls strategies until one yields a visible element.
type Resolver struct {
	Timeout  time.Duration
	Interval time.Duration
	Logger   *log.Logger
}

// NewResolver returns a resolver waiting up to timeout per resolution.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{Timeout: timeout, Interval: DefaultInterval}
}

// Section resolves a sidebar section control.
func (r *Resolver) Section(ctx context.Context, scope page.Scope, name string) (*Resolution, error) {
	return r.Resolve(ctx, scope, CategorySection, name, SectionStrategies())
}

// Column resolves a board column.
func (r *Resolver) Column(ctx context.Context, scope page.Scope, name string) (*Resolution, error) {
	return r.Resolve(ctx, scope, CategoryColumn, name, ColumnStrategies())
}

// Card resolves a card inside an already resolved column.
func (r *Resolver) Card(ctx context.Context, column page.Scope, task string) (*Resolution, error) {
	return r.Resolve(ctx, column, CategoryCard, task, CardStrategies())
}

// Resolve tries strategies in order and returns the first one with a match.
// A strategy is skipped only when it matches nothing; a match that never
// becomes visible fails the resolution.
func (r *Resolver) Resolve(ctx context.Context, scope page.Scope, cat Category, name string, strategies []Strategy) (*Resolution, error) {
	start := time.Now()
	deadline := start.Add(r.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	tried := make([]string, len(strategies))
	for i, s := range strategies {
		tried[i] = s.Name
	}
	notFound := func(err error) error {
		return &NotFoundError{Category: cat, Name: name, Tried: tried, Waited: time.Since(start), Err: err}
	}

	var lastErr error
	for {
		for _, s := range strategies {
			loc := s.Find(scope, name)
			n, err := loc.Count()
			if err != nil {
				lastErr = err
				continue
			}
			if n == 0 {
				continue
			}
			first := loc.First()
			if err := first.WaitVisible(time.Until(deadline)); err != nil {
				return nil, notFound(err)
			}
			if r.Logger != nil {
				r.Logger.Printf("resolved %s %q via %s", cat, name, s.Name)
			}
			return &Resolution{Locator: first, Strategy: s.Name}, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, notFound(lastErr)
		}
		if wait > interval {
			wait = interval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, notFound(ctx.Err())
		case <-timer.C:
		}
	}
}
