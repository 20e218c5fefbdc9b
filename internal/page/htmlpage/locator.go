package htmlpage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gotrs-io/boardcheck/internal/page"
)

// Locator is a lazy query against the page's current document.
type Locator struct {
	page    *Page
	desc    string
	resolve func() []*html.Node
	err     error
}

var _ page.Locator = (*Locator)(nil)

func (l *Locator) derive(desc string, pick func(scope *html.Node) []*html.Node) *Locator {
	parent := l
	return &Locator{
		page: l.page,
		desc: l.desc + " >> " + desc,
		err:  l.err,
		resolve: func() []*html.Node {
			var out []*html.Node
			for _, scope := range parent.resolve() {
				out = append(out, pick(scope)...)
			}
			return parent.page.inDocumentOrder(out)
		},
	}
}

func (l *Locator) GetByRole(role page.Role, q page.RoleQuery) page.Locator {
	m := matcher{text: q.Name, pattern: q.Pattern, exact: q.Exact}
	desc := fmt.Sprintf("role=%s", role)
	if !m.empty() {
		desc += fmt.Sprintf("[name=%s]", m)
	}
	if q.Level > 0 {
		desc += fmt.Sprintf("[level=%d]", q.Level)
	}
	return l.derive(desc, func(scope *html.Node) []*html.Node {
		root := l.page.root()
		return descendants(scope, func(n *html.Node) bool {
			if roleOf(n) != role || !visible(n) {
				return false
			}
			if q.Level > 0 && role == page.RoleHeading && headingLevel(n) != q.Level {
				return false
			}
			return m.empty() || m.match(accessibleName(root, n))
		})
	})
}

func (l *Locator) GetByText(q page.TextQuery) page.Locator {
	m := matcher{text: q.Text, pattern: q.Pattern, exact: q.Exact}
	return l.derive(fmt.Sprintf("text=%s", m), func(scope *html.Node) []*html.Node {
		return descendants(scope, func(n *html.Node) bool {
			if !m.match(textContent(n)) {
				return false
			}
			// Keep the innermost element carrying the text.
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && m.match(textContent(c)) {
					return false
				}
			}
			return true
		})
	})
}

func (l *Locator) Locator(sel, hasText string) page.Locator {
	if sel == ".." {
		return l.Parent()
	}
	desc := sel
	if hasText != "" {
		desc += fmt.Sprintf("[has-text=%q]", hasText)
	}
	group, err := compileSelector(sel)
	out := l.derive(desc, func(scope *html.Node) []*html.Node {
		if group == nil {
			return nil
		}
		return descendants(scope, func(n *html.Node) bool {
			if !group.Match(n) {
				return false
			}
			return hasText == "" || strings.Contains(fold(normalize(textContent(n))), fold(normalize(hasText)))
		})
	})
	if err != nil && out.err == nil {
		out.err = err
	}
	return out
}

func (l *Locator) First() page.Locator {
	parent := l
	return &Locator{
		page: l.page,
		desc: l.desc + " >> nth=0",
		err:  l.err,
		resolve: func() []*html.Node {
			nodes := parent.resolve()
			if len(nodes) == 0 {
				return nil
			}
			return nodes[:1]
		},
	}
}

func (l *Locator) Parent() page.Locator {
	return l.derive("..", func(n *html.Node) []*html.Node {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return nil
		}
		return []*html.Node{n.Parent}
	})
}

func (l *Locator) Count() (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	return len(l.resolve()), nil
}

// single enforces that an action targets exactly one element.
func (l *Locator) single() (*html.Node, error) {
	if l.err != nil {
		return nil, l.err
	}
	nodes := l.resolve()
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("no element matches %s", l.desc)
	case 1:
		return nodes[0], nil
	default:
		return nil, fmt.Errorf("strict mode violation: %s resolved to %d elements", l.desc, len(nodes))
	}
}

// WaitVisible checks visibility once: the document only changes through
// actions on the same session, so waiting cannot change the outcome.
func (l *Locator) WaitVisible(timeout time.Duration) error {
	if l.err != nil {
		return l.err
	}
	nodes := l.resolve()
	if len(nodes) > 1 {
		return fmt.Errorf("strict mode violation: %s resolved to %d elements", l.desc, len(nodes))
	}
	if len(nodes) == 0 || !visible(nodes[0]) {
		return fmt.Errorf("%w: %s (waited %s)", page.ErrNotVisible, l.desc, timeout)
	}
	return nil
}

func (l *Locator) InnerText() (string, error) {
	n, err := l.single()
	if err != nil {
		return "", err
	}
	return normalize(textContent(n)), nil
}

func (l *Locator) OuterHTML() (string, error) {
	n, err := l.single()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("render %s: %w", l.desc, err)
	}
	return buf.String(), nil
}

func (l *Locator) Click() error {
	n, err := l.single()
	if err != nil {
		return err
	}
	if !visible(n) {
		return fmt.Errorf("%w: cannot click %s", page.ErrNotVisible, l.desc)
	}
	return l.page.activate(n)
}

func (l *Locator) Fill(value string) error {
	n, err := l.single()
	if err != nil {
		return err
	}
	switch n.DataAtom {
	case atom.Input:
		setAttr(n, "value", value)
	case atom.Textarea:
		for c := n.FirstChild; c != nil; c = n.FirstChild {
			n.RemoveChild(c)
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	default:
		return fmt.Errorf("cannot fill <%s> matched by %s", n.Data, l.desc)
	}
	return nil
}

func (l *Locator) Describe() string {
	return l.desc
}
