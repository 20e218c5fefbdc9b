// Package artifacts lays out run output on disk and ships it to object
// storage.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Layout places report files under Root and per-scenario files under
// Root/data/<slug>.
type Layout struct {
	Root string
}

func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a scenario name into a directory name.
func Slug(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		s = "scenario"
	}
	if len(s) > 80 {
		s = strings.TrimRight(s[:80], "-")
	}
	return s
}

func (l *Layout) ScenarioDir(name string) string {
	return filepath.Join(l.Root, "data", Slug(name))
}

func (l *Layout) TracePath(name string, attempt int) string {
	return filepath.Join(l.ScenarioDir(name), fmt.Sprintf("trace-attempt%d.zip", attempt))
}

func (l *Layout) ScreenshotPath(name string, attempt int) string {
	return filepath.Join(l.ScenarioDir(name), fmt.Sprintf("failure-attempt%d.png", attempt))
}

func (l *Layout) ReportPath() string {
	return filepath.Join(l.Root, "index.html")
}

func (l *Layout) SummaryPath() string {
	return filepath.Join(l.Root, "summary.json")
}

// Prepare creates the directory of a scenario.
func (l *Layout) Prepare(name string) error {
	if err := os.MkdirAll(l.ScenarioDir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return nil
}

// Rel returns path relative to Root with forward slashes, for links in the
// report. Paths outside Root are returned unchanged.
func (l *Layout) Rel(path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(l.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// Reset removes files left by a previous run.
func (l *Layout) Reset() error {
	if err := os.RemoveAll(filepath.Join(l.Root, "data")); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	return os.MkdirAll(l.Root, 0o755)
}
