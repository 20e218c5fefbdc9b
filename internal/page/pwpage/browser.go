// Package pwpage drives a real browser through playwright-go.
package pwpage

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/boardcheck/internal/page"
)

// Options configure the browser launch and every context created from it.
type Options struct {
	Browser        string // chromium, firefox or webkit
	Headless       bool
	SlowMo         time.Duration
	BaseURL        string
	DefaultTimeout time.Duration
	VideoDir       string
	// SkipInstall skips the driver/browser download, for images that ship
	// them preinstalled.
	SkipInstall bool
}

// Driver owns the Playwright process and one launched browser.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	logger  *log.Logger
}

var _ page.Driver = (*Driver)(nil)

// Launch starts Playwright and the configured browser.
func Launch(opts Options) (*Driver, error) {
	logger := log.New(os.Stderr, "[pwpage] ", log.LstdFlags)
	if !opts.SkipInstall && os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		browsers := []string{browserName(opts.Browser)}
		if err := playwright.Install(&playwright.RunOptions{Browsers: browsers}); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		// Retry once after an explicit install; driver versions drift in CI images.
		_ = playwright.Install()
		pw, err = playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("could not start playwright after retry: %w", err)
		}
	}

	var bt playwright.BrowserType
	switch browserName(opts.Browser) {
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		bt = pw.Chromium
	}
	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch %s: %w", browserName(opts.Browser), err)
	}
	logger.Printf("launched %s (headless=%t slowMo=%s)", browserName(opts.Browser), opts.Headless, opts.SlowMo)
	return &Driver{pw: pw, browser: browser, opts: opts, logger: logger}, nil
}

func browserName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "firefox":
		return "firefox"
	case "webkit":
		return "webkit"
	default:
		return "chromium"
	}
}

// NewSession creates a fresh browser context and page.
func (d *Driver) NewSession(ctx context.Context) (page.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 720},
	}
	if d.opts.BaseURL != "" {
		opts.BaseURL = playwright.String(d.opts.BaseURL)
	}
	if d.opts.VideoDir != "" {
		opts.RecordVideo = &playwright.RecordVideo{Dir: d.opts.VideoDir}
	}
	bctx, err := d.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	if d.opts.DefaultTimeout > 0 {
		bctx.SetDefaultTimeout(float64(d.opts.DefaultTimeout.Milliseconds()))
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	s := &Session{ctx: bctx, page: &Page{page: pg}}
	pg.On("console", func(msg playwright.ConsoleMessage) {
		s.mu.Lock()
		s.console = append(s.console, fmt.Sprintf("[%s] %s", msg.Type(), msg.Text()))
		s.mu.Unlock()
	})
	return s, nil
}

// Close shuts down the browser and the Playwright process.
func (d *Driver) Close() error {
	var firstErr error
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Session is one browser context with its page.
type Session struct {
	ctx  playwright.BrowserContext
	page *Page

	mu      sync.Mutex
	console []string
	tracing bool
}

var _ page.Session = (*Session)(nil)

func (s *Session) Page() page.Page { return s.page }

func (s *Session) StartTrace(title string) error {
	err := s.ctx.Tracing().Start(playwright.TracingStartOptions{
		Title:       playwright.String(title),
		Screenshots: playwright.Bool(true),
		Snapshots:   playwright.Bool(true),
		Sources:     playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("start trace: %w", err)
	}
	s.tracing = true
	return nil
}

func (s *Session) StopTrace(path string) error {
	if !s.tracing {
		return nil
	}
	s.tracing = false
	if path == "" {
		return s.ctx.Tracing().Stop()
	}
	if err := s.ctx.Tracing().Stop(path); err != nil {
		return fmt.Errorf("stop trace: %w", err)
	}
	return nil
}

func (s *Session) Console() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.console...)
}

func (s *Session) Close() error {
	if s.tracing {
		_ = s.ctx.Tracing().Stop()
	}
	if err := s.page.page.Close(); err != nil {
		return err
	}
	return s.ctx.Close()
}

// Page adapts playwright.Page to page.Page.
type Page struct {
	page playwright.Page
}

var _ page.Page = (*Page)(nil)

func (p *Page) root() *Locator {
	return wrap(p.page.Locator("html"), "page")
}

func (p *Page) GetByRole(role page.Role, q page.RoleQuery) page.Locator {
	return p.root().GetByRole(role, q)
}

func (p *Page) GetByText(q page.TextQuery) page.Locator {
	return p.root().GetByText(q)
}

func (p *Page) Locator(selector, hasText string) page.Locator {
	return p.root().Locator(selector, hasText)
}

func (p *Page) Goto(target string) error {
	_, err := p.page.Goto(target)
	if err != nil && strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
		return fmt.Errorf("redirect loop navigating to %s (check base_url and the login redirect): %w", target, err)
	}
	return err
}

func (p *Page) WaitForSettled() error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}
