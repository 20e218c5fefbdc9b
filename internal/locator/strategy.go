package locator

import (
	"regexp"

	"github.com/gotrs-io/boardcheck/internal/page"
)

// Category names what kind of board element a logical name refers to.
type Category string

const (
	CategorySection Category = "section"
	CategoryColumn  Category = "column"
	CategoryCard    Category = "card"
)

// Strategy is one way of finding an element by logical name. Find only
// builds a lazy locator; the resolver decides whether it matched.
type Strategy struct {
	Name string
	Find func(scope page.Scope, name string) page.Locator
}

// WholeWordPrefix matches names that start with name followed by a word
// boundary, ignoring case. Metacharacters in name match literally.
func WholeWordPrefix(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(name) + `\b`)
}

// ExactFold matches text equal to name, ignoring case and surrounding space.
func ExactFold(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*` + regexp.QuoteMeta(name) + `\s*$`)
}

// SectionStrategies finds sidebar controls: a link, then a button whose label
// begins with the section name (sidebar buttons append a subtitle), then any
// element with exactly that text.
func SectionStrategies() []Strategy {
	return []Strategy{
		{
			Name: "link-prefix",
			Find: func(scope page.Scope, name string) page.Locator {
				return scope.GetByRole(page.RoleLink, page.RoleQuery{Pattern: WholeWordPrefix(name)})
			},
		},
		{
			Name: "button-prefix",
			Find: func(scope page.Scope, name string) page.Locator {
				return scope.GetByRole(page.RoleButton, page.RoleQuery{Pattern: WholeWordPrefix(name)})
			},
		},
		{
			Name: "text-exact",
			Find: func(scope page.Scope, name string) page.Locator {
				return scope.GetByText(page.TextQuery{Pattern: ExactFold(name)})
			},
		},
	}
}

// ColumnStrategies finds a board column. There is no page-root fallback; an
// absent column fails resolution.
func ColumnStrategies() []Strategy {
	return []Strategy{
		{
			Name: "heading-container",
			Find: func(scope page.Scope, name string) page.Locator {
				return scope.GetByRole(page.RoleHeading, page.RoleQuery{Name: name, Level: 2}).First().Parent()
			},
		},
		{
			Name: "heading",
			Find: func(scope page.Scope, name string) page.Locator {
				return scope.GetByRole(page.RoleHeading, page.RoleQuery{Name: name, Level: 2})
			},
		},
		{
			Name: "region",
			Find: func(scope page.Scope, name string) page.Locator {
				return scope.GetByRole(page.RoleRegion, page.RoleQuery{Name: name, Exact: true})
			},
		},
	}
}

// CardStrategies finds a card inside a column: the parent of the first
// level-3 heading containing the task title.
func CardStrategies() []Strategy {
	return []Strategy{
		{
			Name: "heading-parent",
			Find: func(scope page.Scope, name string) page.Locator {
				return scope.GetByRole(page.RoleHeading, page.RoleQuery{Name: name, Level: 3}).First().Parent()
			},
		},
	}
}

// StrategiesFor returns the ordered strategies of a category.
func StrategiesFor(c Category) []Strategy {
	switch c {
	case CategorySection:
		return SectionStrategies()
	case CategoryColumn:
		return ColumnStrategies()
	case CategoryCard:
		return CardStrategies()
	}
	return nil
}
