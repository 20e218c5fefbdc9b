package htmlpage

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"

	"github.com/gotrs-io/boardcheck/internal/page"
)

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// normalize collapses runs of whitespace and trims the result.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// textContent concatenates the text of n and its descendants, skipping
// non-rendered elements.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			return
		case html.ElementNode:
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Head:
				return
			case atom.Br:
				b.WriteByte('\n')
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

// matcher implements the name and text matching rules of page.RoleQuery.
type matcher struct {
	text    string
	pattern *regexp.Regexp
	exact   bool
}

func (m matcher) empty() bool {
	return m.text == "" && m.pattern == nil
}

func (m matcher) match(s string) bool {
	s = normalize(s)
	switch {
	case m.pattern != nil:
		return m.pattern.MatchString(s)
	case m.exact:
		return s == normalize(m.text)
	default:
		return strings.Contains(fold(s), fold(normalize(m.text)))
	}
}

func (m matcher) String() string {
	switch {
	case m.pattern != nil:
		return "/" + m.pattern.String() + "/"
	case m.exact:
		return strconv.Quote(m.text) + " exact"
	default:
		return strconv.Quote(m.text)
	}
}

// sectioning elements scope header/footer away from the banner landmark.
var sectioning = map[atom.Atom]bool{
	atom.Article: true,
	atom.Aside:   true,
	atom.Main:    true,
	atom.Nav:     true,
	atom.Section: true,
}

func roleOf(n *html.Node) page.Role {
	if n.Type != html.ElementNode {
		return ""
	}
	if r := strings.Fields(attr(n, "role")); len(r) > 0 {
		return page.Role(strings.ToLower(r[0]))
	}
	switch n.DataAtom {
	case atom.A, atom.Area:
		if hasAttr(n, "href") {
			return page.RoleLink
		}
	case atom.Button:
		return page.RoleButton
	case atom.Input:
		switch strings.ToLower(attr(n, "type")) {
		case "submit", "button", "reset", "image":
			return page.RoleButton
		case "", "text", "email", "search", "tel", "url":
			return page.RoleTextbox
		}
	case atom.Textarea:
		return page.RoleTextbox
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return page.RoleHeading
	case atom.Header:
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && sectioning[p.DataAtom] {
				return ""
			}
		}
		return page.RoleBanner
	case atom.Section:
		if hasAttr(n, "aria-label") || hasAttr(n, "aria-labelledby") {
			return page.RoleRegion
		}
	}
	return ""
}

func headingLevel(n *html.Node) int {
	if lvl, err := strconv.Atoi(attr(n, "aria-level")); err == nil {
		return lvl
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 2
}

func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walkElements(root, func(n *html.Node) bool {
		if attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// accessibleName is a reduced form of the accname algorithm: labelledby,
// aria-label, then content for roles that take their name from content.
func accessibleName(root, n *html.Node) string {
	if ids := strings.Fields(attr(n, "aria-labelledby")); len(ids) > 0 {
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			if ref := findByID(root, id); ref != nil {
				parts = append(parts, textContent(ref))
			}
		}
		return normalize(strings.Join(parts, " "))
	}
	if label := attr(n, "aria-label"); label != "" {
		return normalize(label)
	}
	switch roleOf(n) {
	case page.RoleLink, page.RoleButton, page.RoleHeading:
		if n.DataAtom == atom.Input {
			return normalize(attr(n, "value"))
		}
		return normalize(textContent(n))
	case page.RoleTextbox:
		if p := attr(n, "placeholder"); p != "" {
			return normalize(p)
		}
		return normalize(attr(n, "title"))
	}
	return ""
}

func visible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch p.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template, atom.Title, atom.Noscript:
			return false
		case atom.Input:
			if strings.EqualFold(attr(p, "type"), "hidden") {
				return false
			}
		}
		if hasAttr(p, "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(attr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// walkElements visits element descendants of root in document order until
// fn returns false.
func walkElements(root *html.Node, fn func(*html.Node) bool) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !fn(c) {
			return false
		}
		if !walkElements(c, fn) {
			return false
		}
	}
	return true
}

func descendants(root *html.Node, keep func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walkElements(root, func(n *html.Node) bool {
		if keep(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}
