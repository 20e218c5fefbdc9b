package pwpage

import (
	"fmt"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/boardcheck/internal/page"
)

// nameValue converts a query into the string-or-regexp value Playwright
// accepts for names and text.
func nameValue(text string, pattern *regexp.Regexp) interface{} {
	if pattern != nil {
		return pattern
	}
	return text
}

func roleOptions(q page.RoleQuery) playwright.LocatorGetByRoleOptions {
	var opts playwright.LocatorGetByRoleOptions
	if q.Name != "" || q.Pattern != nil {
		opts.Name = nameValue(q.Name, q.Pattern)
		if q.Pattern == nil && q.Exact {
			opts.Exact = playwright.Bool(true)
		}
	}
	if q.Level > 0 {
		opts.Level = playwright.Int(q.Level)
	}
	return opts
}

func describeRole(role page.Role, q page.RoleQuery) string {
	desc := fmt.Sprintf("role=%s", role)
	switch {
	case q.Pattern != nil:
		desc += fmt.Sprintf("[name=/%s/]", q.Pattern)
	case q.Name != "":
		desc += fmt.Sprintf("[name=%q]", q.Name)
	}
	if q.Level > 0 {
		desc += fmt.Sprintf("[level=%d]", q.Level)
	}
	return desc
}

// Locator adapts playwright.Locator to page.Locator.
type Locator struct {
	loc  playwright.Locator
	desc string
}

var _ page.Locator = (*Locator)(nil)

func wrap(loc playwright.Locator, desc string) *Locator {
	return &Locator{loc: loc, desc: desc}
}

func (l *Locator) GetByRole(role page.Role, q page.RoleQuery) page.Locator {
	return wrap(l.loc.GetByRole(playwright.AriaRole(role), roleOptions(q)), l.desc+" >> "+describeRole(role, q))
}

func (l *Locator) GetByText(q page.TextQuery) page.Locator {
	opts := playwright.LocatorGetByTextOptions{}
	if q.Pattern == nil && q.Exact {
		opts.Exact = playwright.Bool(true)
	}
	return wrap(l.loc.GetByText(nameValue(q.Text, q.Pattern), opts), l.desc+" >> text="+fmt.Sprint(nameValue(q.Text, q.Pattern)))
}

func (l *Locator) Locator(selector, hasText string) page.Locator {
	opts := playwright.LocatorLocatorOptions{}
	desc := selector
	if hasText != "" {
		opts.HasText = hasText
		desc += fmt.Sprintf("[has-text=%q]", hasText)
	}
	return wrap(l.loc.Locator(selector, opts), l.desc+" >> "+desc)
}

func (l *Locator) First() page.Locator {
	return wrap(l.loc.First(), l.desc+" >> nth=0")
}

func (l *Locator) Parent() page.Locator {
	return wrap(l.loc.Locator(".."), l.desc+" >> ..")
}

func (l *Locator) Count() (int, error) {
	return l.loc.Count()
}

func (l *Locator) WaitVisible(timeout time.Duration) error {
	// A zero timeout means "wait forever" to Playwright.
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	err := l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", page.ErrNotVisible, l.desc, err)
	}
	return nil
}

func (l *Locator) InnerText() (string, error) {
	return l.loc.InnerText()
}

func (l *Locator) OuterHTML() (string, error) {
	v, err := l.loc.Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (l *Locator) Click() error {
	return l.loc.Click()
}

func (l *Locator) Fill(value string) error {
	return l.loc.Fill(value)
}

func (l *Locator) Describe() string {
	return l.desc
}
