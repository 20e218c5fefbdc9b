package runner

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a scenario failed.
type Kind string

const (
	KindAuthentication Kind = "AuthenticationFailure"
	KindNavigation     Kind = "NavigationFailure"
	KindColumnNotFound Kind = "ColumnNotFound"
	KindCardNotFound   Kind = "CardNotFound"
	KindTagMismatch    Kind = "TagMismatch"
	KindTagMissing     Kind = "TagMissing"
	KindTimeout        Kind = "Timeout"

	// KindInvalidSelector means the configured tag selector cannot be
	// evaluated; no tag was checked.
	KindInvalidSelector Kind = "InvalidSelector"
)

// State is a step of the per-scenario state machine.
type State int

const (
	StateLoggedOut State = iota
	StateLoggedIn
	StateSectionActive
	StateColumnVisible
	StateCardVisible
	StateVerified
)

var stateNames = [...]string{"LoggedOut", "LoggedIn", "SectionActive", "ColumnVisible", "CardVisible", "Verified"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Absent is the observed value when nothing was found.
const Absent = "(absent)"

// StepError reports a failed transition: the state the scenario had reached,
// what was expected and what the page showed instead.
type StepError struct {
	Kind     Kind
	State    State
	Scenario string
	Expected string
	Observed string
	Err      error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s in %s", e.Kind, e.State)
	if e.Expected != "" || e.Observed != "" {
		msg += fmt.Sprintf(": expected %q, observed %q", e.Expected, e.Observed)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first StepError in err's tree. A bare
// deadline error counts as a timeout.
func KindOf(err error) Kind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// StepErrors returns every StepError joined into err, in order.
func StepErrors(err error) []*StepError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*StepError
		for _, e := range joined.Unwrap() {
			out = append(out, StepErrors(e)...)
		}
		return out
	}
	var se *StepError
	if errors.As(err, &se) {
		return []*StepError{se}
	}
	return nil
}
