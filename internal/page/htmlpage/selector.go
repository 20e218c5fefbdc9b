package htmlpage

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// compileSelector parses a CSS selector group. Combinators are matched
// against the whole document, so a scoped query behaves like
// querySelectorAll on the scope element.
func compileSelector(src string) (cascadia.SelectorGroup, error) {
	group, err := cascadia.ParseGroup(src)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", src, err)
	}
	return group, nil
}
