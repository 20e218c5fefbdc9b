// Package page describes the small browser surface the board checks drive.
//
// Locators are lazy: building one never touches the page, and every call that
// reads state (Count, InnerText, WaitVisible, ...) re-evaluates the query
// against the page as it is at that moment. Two drivers implement the
// interfaces: pwpage (Playwright) and htmlpage (an in-memory DOM).
package page

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// Role is an ARIA role used for accessible queries.
type Role string

const (
	RoleLink    Role = "link"
	RoleButton  Role = "button"
	RoleHeading Role = "heading"
	RoleBanner  Role = "banner"
	RoleRegion  Role = "region"
	RoleTextbox Role = "textbox"
)

// ErrNotVisible is returned by WaitVisible when no matching element became
// visible within the allowed time.
var ErrNotVisible = errors.New("element not visible")

// RoleQuery narrows a role query by accessible name and heading level.
//
// Name matches as a case-insensitive substring unless Exact is set, in which
// case the whole name must match case-sensitively. Pattern, when set, replaces
// Name. Level of zero matches any heading level.
type RoleQuery struct {
	Name    string
	Pattern *regexp.Regexp
	Exact   bool
	Level   int
}

// TextQuery selects elements by their text content, with the same matching
// rules as RoleQuery.
type TextQuery struct {
	Text    string
	Pattern *regexp.Regexp
	Exact   bool
}

// Scope is anything queries can be issued against: a whole page or a locator.
type Scope interface {
	GetByRole(role Role, q RoleQuery) Locator
	GetByText(q TextQuery) Locator
	// Locator selects by CSS selector, optionally keeping only elements whose
	// text contains hasText (case-insensitive).
	Locator(selector, hasText string) Locator
}

// Locator is a lazy handle to zero or more elements.
type Locator interface {
	Scope
	First() Locator
	Parent() Locator
	Count() (int, error)
	WaitVisible(timeout time.Duration) error
	InnerText() (string, error)
	OuterHTML() (string, error)
	Click() error
	Fill(value string) error
	// Describe returns a human-readable form of the query chain.
	Describe() string
}

// Page is a single browser tab.
type Page interface {
	Scope
	// Goto opens a path relative to the session base URL, or an absolute URL.
	Goto(target string) error
	// WaitForSettled blocks until navigation triggered by the last action has
	// finished loading.
	WaitForSettled() error
	URL() string
	Screenshot(path string) error
}

// Session is one isolated browsing context with its own cookies and storage.
type Session interface {
	Page() Page
	StartTrace(title string) error
	// StopTrace saves the trace to path, or discards it when path is empty.
	StopTrace(path string) error
	// Console returns console messages emitted by the page so far.
	Console() []string
	Close() error
}

// Driver creates isolated sessions. A driver is shared by a run, sessions
// are not.
type Driver interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}
