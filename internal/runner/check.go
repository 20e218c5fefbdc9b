package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotrs-io/boardcheck/internal/locator"
	"github.com/gotrs-io/boardcheck/internal/page"
	"github.com/gotrs-io/boardcheck/internal/scenario"
)

const (
	identifierSelector = `input[type="text"], input[type="email"]`
	passwordSelector   = `input[type="password"]`
	submitSelector     = `button[type="submit"]`
)

// check is one attempt of one scenario. Steps run sequentially on a single
// goroutine; the mutex only guards reads from the timeout path.
type check struct {
	r        *Runner
	s        scenario.Scenario
	page     page.Page
	resolver *locator.Resolver

	mu    sync.Mutex
	state State
	log   []string
	title string
	tags  []string
	last  page.Locator
}

func newCheck(r *Runner, s scenario.Scenario, p page.Page) *check {
	return &check{
		r:        r,
		s:        s,
		page:     p,
		resolver: locator.NewResolver(r.opts.ResolveTimeout),
	}
}

func (c *check) run(ctx context.Context) error {
	steps := []func(context.Context) error{
		c.login,
		c.navigate,
		c.findColumn,
		c.findCard,
		c.verify,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *check) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *check) advance(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *check) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	c.mu.Lock()
	c.log = append(c.log, line)
	c.mu.Unlock()
	c.r.logger.Printf("[%s] %s", c.s.Name, line)
}

func (c *check) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *check) observed() (string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title, append([]string(nil), c.tags...)
}

func (c *check) setLast(l page.Locator) {
	c.mu.Lock()
	c.last = l
	c.mu.Unlock()
}

// snippet returns the markup of the deepest element resolved so far, or of
// the whole body.
func (c *check) snippet() (string, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last == nil {
		last = c.page.Locator("body", "")
	}
	return last.OuterHTML()
}

func (c *check) fail(kind Kind, expected, observed string, err error) *StepError {
	return &StepError{
		Kind:     kind,
		State:    c.State(),
		Scenario: c.s.Name,
		Expected: expected,
		Observed: observed,
		Err:      err,
	}
}

// waitBudget is the visibility wait for one element, capped by the attempt
// deadline.
func (c *check) waitBudget(ctx context.Context) time.Duration {
	budget := c.r.opts.ResolveTimeout
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < budget {
			budget = left
		}
	}
	return budget
}

func (c *check) bannerHeading(name string) page.Locator {
	return c.page.GetByRole(page.RoleBanner, page.RoleQuery{}).
		GetByRole(page.RoleHeading, page.RoleQuery{Name: name, Exact: true, Level: 1})
}

// bannerText reads whatever the banner heading currently says.
func (c *check) bannerText() string {
	h := c.page.GetByRole(page.RoleBanner, page.RoleQuery{}).
		GetByRole(page.RoleHeading, page.RoleQuery{Level: 1}).First()
	if n, err := h.Count(); err != nil || n == 0 {
		return Absent
	}
	text, err := h.InnerText()
	if err != nil {
		return Absent
	}
	return strings.TrimSpace(text)
}

func (c *check) login(ctx context.Context) error {
	opts := c.r.opts
	authFail := func(expected, observed string, err error) error {
		return c.fail(KindAuthentication, expected, observed, err)
	}

	if err := c.page.Goto("/"); err != nil {
		return authFail("", "", fmt.Errorf("open login page: %w", err))
	}
	if err := c.page.Locator(identifierSelector, "").First().Fill(opts.Credentials.Identifier); err != nil {
		return authFail("", "", fmt.Errorf("fill identifier: %w", err))
	}
	if err := c.page.Locator(passwordSelector, "").First().Fill(opts.Credentials.Password); err != nil {
		return authFail("", "", fmt.Errorf("fill password: %w", err))
	}
	if err := c.page.Locator(submitSelector, "").First().Click(); err != nil {
		return authFail("", "", fmt.Errorf("submit login: %w", err))
	}
	if err := c.page.WaitForSettled(); err != nil {
		return authFail("", "", err)
	}

	if err := c.bannerHeading(opts.HomeSection).WaitVisible(c.waitBudget(ctx)); err != nil {
		return authFail(opts.HomeSection, c.bannerText(), err)
	}
	column := c.page.GetByRole(page.RoleHeading, page.RoleQuery{Name: opts.FirstColumn}).First()
	if err := column.WaitVisible(c.waitBudget(ctx)); err != nil {
		return authFail(opts.FirstColumn, Absent, err)
	}
	c.advance(StateLoggedIn)
	return nil
}

func (c *check) navigate(ctx context.Context) error {
	if c.s.Section == c.r.opts.HomeSection {
		c.advance(StateSectionActive)
		return nil
	}
	res, err := c.resolver.Section(ctx, c.page, c.s.Section)
	if err != nil {
		return c.fail(KindNavigation, c.s.Section, Absent, err)
	}
	if err := res.Locator.Click(); err != nil {
		return c.fail(KindNavigation, c.s.Section, "", fmt.Errorf("click %s: %w", res.Locator.Describe(), err))
	}
	if err := c.page.WaitForSettled(); err != nil {
		return c.fail(KindNavigation, c.s.Section, "", err)
	}
	if err := c.bannerHeading(c.s.Section).WaitVisible(c.waitBudget(ctx)); err != nil {
		return c.fail(KindNavigation, c.s.Section, c.bannerText(), err)
	}
	c.advance(StateSectionActive)
	return nil
}

func (c *check) findColumn(ctx context.Context) error {
	res, err := c.resolver.Column(ctx, c.page, c.s.Column)
	if err != nil {
		return c.fail(KindColumnNotFound, c.s.Column, Absent, err)
	}
	c.setLast(res.Locator)
	c.advance(StateColumnVisible)
	return c.settle(ctx)
}

func (c *check) findCard(ctx context.Context) error {
	c.mu.Lock()
	column := c.last
	c.mu.Unlock()

	res, err := c.resolver.Card(ctx, column, c.s.Task)
	if err != nil {
		return c.fail(KindCardNotFound, c.s.Task, Absent, err)
	}
	c.setLast(res.Locator)
	c.advance(StateCardVisible)
	return c.settle(ctx)
}

// settle waits the configured pacing delay between board steps.
func (c *check) settle(ctx context.Context) error {
	d := c.r.opts.SettleDelay
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return c.fail(KindTimeout, "", "", ctx.Err())
	case <-t.C:
		return nil
	}
}

// verify compares the card title and then every tag; tag failures are
// collected so one run reports all of them.
func (c *check) verify(ctx context.Context) error {
	c.mu.Lock()
	card := c.last
	c.mu.Unlock()

	raw, err := card.GetByRole(page.RoleHeading, page.RoleQuery{Level: 3}).First().InnerText()
	if err != nil {
		return c.fail(KindCardNotFound, c.s.Task, Absent, err)
	}
	title := strings.TrimSpace(raw)
	c.mu.Lock()
	c.title = title
	c.mu.Unlock()
	c.logf("Found card title: %q", title)
	if title != c.s.Task {
		return c.fail(KindCardNotFound, c.s.Task, title, nil)
	}

	var errs []error
	for _, tag := range c.s.Tags {
		if err := ctx.Err(); err != nil {
			return c.fail(KindTimeout, tag, "", err)
		}
		if err := c.verifyTag(card, tag); err != nil {
			if KindOf(err) == KindInvalidSelector {
				return err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.advance(StateVerified)
	return nil
}

func (c *check) verifyTag(card page.Locator, tag string) error {
	label := card.Locator(c.r.opts.TagSelector, tag)
	n, err := label.Count()
	if err != nil {
		return c.fail(KindInvalidSelector, c.r.opts.TagSelector, "", err)
	}
	if n == 0 {
		return c.fail(KindTagMissing, tag, Absent, nil)
	}
	raw, err := label.First().InnerText()
	if err != nil {
		return c.fail(KindTagMissing, tag, Absent, err)
	}
	text := strings.TrimSpace(raw)
	c.mu.Lock()
	c.tags = append(c.tags, text)
	c.mu.Unlock()
	c.logf("Found tag: %q", text)
	if text != tag {
		return c.fail(KindTagMismatch, tag, text, nil)
	}
	return nil
}
