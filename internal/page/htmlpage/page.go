// Package htmlpage is an in-memory page driver built on golang.org/x/net/html.
//
// It parses server-rendered documents and answers the same role, text and
// selector queries as the Playwright driver. Links, GET and POST forms are
// followed through a Loader; scripts never run. It backs the locator strategy
// tests and offline runs against the fixture board or saved snapshots.
package htmlpage

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gotrs-io/boardcheck/internal/page"
)

// Page holds the current document of one session.
type Page struct {
	ctx    context.Context
	loader Loader

	mu      sync.RWMutex
	doc     *html.Node
	url     *url.URL
	history []string
}

var _ page.Page = (*Page)(nil)

// FromHTML returns a page showing src at base. It is meant for tests that
// exercise queries against a fixed document.
func FromHTML(src string) (*Page, error) {
	p := &Page{
		ctx:    context.Background(),
		loader: StaticLoader{"/": src},
	}
	if err := p.Goto("http://snapshot.local/"); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) root() *html.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.doc == nil {
		return &html.Node{Type: html.DocumentNode}
	}
	return p.doc
}

func (p *Page) scope() *Locator {
	return &Locator{
		page:    p,
		desc:    "page",
		resolve: func() []*html.Node { return []*html.Node{p.root()} },
	}
}

// inDocumentOrder dedupes nodes and returns them in document order.
func (p *Page) inDocumentOrder(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	set := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		set[n] = true
	}
	out := make([]*html.Node, 0, len(set))
	walkElements(p.root(), func(n *html.Node) bool {
		if set[n] {
			out = append(out, n)
		}
		return len(out) < len(set)
	})
	return out
}

func (p *Page) GetByRole(role page.Role, q page.RoleQuery) page.Locator {
	return p.scope().GetByRole(role, q)
}

func (p *Page) GetByText(q page.TextQuery) page.Locator {
	return p.scope().GetByText(q)
}

func (p *Page) Locator(selector, hasText string) page.Locator {
	return p.scope().Locator(selector, hasText)
}

func (p *Page) Goto(target string) error {
	return p.navigate("GET", target, nil)
}

// WaitForSettled returns immediately: loads complete synchronously.
func (p *Page) WaitForSettled() error {
	return nil
}

func (p *Page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.url == nil {
		return "about:blank"
	}
	return p.url.String()
}

// Screenshot is not supported: nothing is rendered.
func (p *Page) Screenshot(path string) error {
	return fmt.Errorf("screenshot %s: %w", path, errors.ErrUnsupported)
}

// HTML returns the serialized current document.
func (p *Page) HTML() string {
	var buf bytes.Buffer
	_ = html.Render(&buf, p.root())
	return buf.String()
}

func (p *Page) resolveURL(target string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", target, err)
	}
	p.mu.RLock()
	base := p.url
	p.mu.RUnlock()
	if base == nil {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

func (p *Page) navigate(method, target string, form url.Values) error {
	u, err := p.resolveURL(target)
	if err != nil {
		return err
	}
	final, body, err := p.loader.Load(p.ctx, method, u.String(), form)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", final, err)
	}
	finalURL, err := url.Parse(final)
	if err != nil {
		return fmt.Errorf("parse final url %q: %w", final, err)
	}

	p.mu.Lock()
	p.doc = doc
	p.url = finalURL
	p.history = append(p.history, fmt.Sprintf("%s %s %s -> %s", time.Now().Format(time.RFC3339), method, u, final))
	p.mu.Unlock()
	return nil
}

// activate performs the default action of a clicked element.
func (p *Page) activate(n *html.Node) error {
	for el := n; el != nil; el = el.Parent {
		if el.Type != html.ElementNode {
			continue
		}
		switch el.DataAtom {
		case atom.A:
			if href, ok := hrefOf(el); ok {
				return p.navigate("GET", href, nil)
			}
		case atom.Button, atom.Input:
			typ := strings.ToLower(attr(el, "type"))
			submits := typ == "submit" || (el.DataAtom == atom.Button && typ == "") || typ == "image"
			if !submits {
				return nil
			}
			if form := enclosingForm(el); form != nil {
				return p.submit(form, el)
			}
			return nil
		}
	}
	return nil
}

func hrefOf(n *html.Node) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == "href" {
			return a.Val, true
		}
	}
	return "", false
}

func enclosingForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			return p
		}
	}
	return nil
}

func (p *Page) submit(form, submitter *html.Node) error {
	values := url.Values{}
	walkElements(form, func(n *html.Node) bool {
		name := attr(n, "name")
		if name == "" || hasAttr(n, "disabled") {
			return true
		}
		switch n.DataAtom {
		case atom.Input:
			switch strings.ToLower(attr(n, "type")) {
			case "checkbox", "radio":
				if hasAttr(n, "checked") {
					values.Add(name, valueOr(n, "on"))
				}
			case "submit", "button", "reset", "image":
				if n == submitter {
					values.Add(name, attr(n, "value"))
				}
			default:
				values.Add(name, attr(n, "value"))
			}
		case atom.Button:
			if n == submitter {
				values.Add(name, attr(n, "value"))
			}
		case atom.Textarea:
			values.Add(name, textContent(n))
		case atom.Select:
			walkElements(n, func(o *html.Node) bool {
				if o.DataAtom == atom.Option && hasAttr(o, "selected") {
					values.Add(name, valueOr(o, normalize(textContent(o))))
				}
				return true
			})
		}
		return true
	})

	action := attr(form, "action")
	if v := attr(submitter, "formaction"); v != "" {
		action = v
	}
	if action == "" {
		action = p.URL()
	}
	method := strings.ToUpper(attr(form, "method"))
	if v := attr(submitter, "formmethod"); v != "" {
		method = strings.ToUpper(v)
	}
	if method != "POST" {
		u, err := p.resolveURL(action)
		if err != nil {
			return err
		}
		u.RawQuery = values.Encode()
		return p.navigate("GET", u.String(), nil)
	}
	return p.navigate("POST", action, values)
}

func valueOr(n *html.Node, fallback string) string {
	if hasAttr(n, "value") {
		return attr(n, "value")
	}
	return fallback
}

// Session is an isolated htmlpage browsing context.
type Session struct {
	page    *Page
	tracing bool
	title   string
}

var _ page.Session = (*Session)(nil)

func (s *Session) Page() page.Page { return s.page }

// StartTrace begins recording navigations for the trace archive.
func (s *Session) StartTrace(title string) error {
	s.tracing = true
	s.title = title
	return nil
}

// StopTrace writes a zip archive holding the navigation history and the
// final document.
func (s *Session) StopTrace(path string) error {
	if !s.tracing {
		return nil
	}
	s.tracing = false
	if path == "" {
		return nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	s.page.mu.RLock()
	history := strings.Join(s.page.history, "\n") + "\n"
	s.page.mu.RUnlock()
	files := []struct{ name, body string }{
		{"trace.txt", s.title + "\n" + history},
		{"snapshot.html", s.page.HTML()},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("trace %s: %w", path, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			return fmt.Errorf("trace %s: %w", path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("trace %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (s *Session) Console() []string { return nil }

func (s *Session) Close() error { return nil }

// Driver creates htmlpage sessions that each get a fresh loader.
type Driver struct {
	BaseURL   string
	NewLoader func() Loader
}

var _ page.Driver = (*Driver)(nil)

// NewHTTPDriver returns a driver that loads pages over HTTP from baseURL.
func NewHTTPDriver(baseURL string) *Driver {
	return &Driver{
		BaseURL:   baseURL,
		NewLoader: func() Loader { return NewHTTPLoader() },
	}
}

// NewStaticDriver returns a driver serving documents keyed by URL path.
func NewStaticDriver(docs map[string]string) *Driver {
	return &Driver{
		BaseURL:   "http://snapshot.local/",
		NewLoader: func() Loader { return StaticLoader(docs) },
	}
}

func (d *Driver) NewSession(ctx context.Context) (page.Session, error) {
	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", d.BaseURL, err)
	}
	p := &Page{
		ctx:    ctx,
		loader: d.NewLoader(),
		url:    base,
		doc:    &html.Node{Type: html.DocumentNode},
	}
	return &Session{page: p}, nil
}

func (d *Driver) Close() error { return nil }
