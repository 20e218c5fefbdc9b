package report

import (
	"github.com/microcosm-cc/bluemonday"
)

// snippetPolicy keeps the board structure of a captured DOM fragment and
// drops scripts, handlers, forms and styling.
var snippetPolicy = newSnippetPolicy()

func newSnippetPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "section", "article", "header", "main", "aside", "nav", "ul", "ol", "li", "p")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6", "span", "small", "strong", "em", "b", "i")
	p.AllowElements("button", "label")
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).Globally()
	p.AllowAttrs("id", "role", "aria-label", "aria-current").Globally()
	return p
}

// SanitizeSnippet makes captured page markup safe to embed in the report.
func SanitizeSnippet(raw string) string {
	return snippetPolicy.Sanitize(raw)
}
