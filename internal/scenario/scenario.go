// Package scenario holds the declarative board expectations: which card must
// sit in which column of which section, carrying which tags.
package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultTable []byte

// Scenario is one expected card.
type Scenario struct {
	Name    string   `yaml:"name" json:"name"`
	Section string   `yaml:"section" json:"section"`
	Column  string   `yaml:"column" json:"column"`
	Task    string   `yaml:"task" json:"task"`
	Tags    []string `yaml:"tags" json:"tags"`
}

// Table is the ordered scenario list of a run.
type Table struct {
	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// ValidationError lists every problem found in a table.
type ValidationError struct {
	Source string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scenario table %s: %s", e.Source, strings.Join(e.Errors, "; "))
}

// Default returns the embedded table.
func Default() (*Table, error) {
	return Parse(defaultTable, "embedded")
}

// Load reads a table from path. An empty path loads the embedded table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a YAML table. source names it in errors.
func Parse(data []byte, source string) (*Table, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	if problems, err := validateSchema(raw); err != nil {
		return nil, err
	} else if len(problems) > 0 {
		return nil, &ValidationError{Source: source, Errors: problems}
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", source, err)
	}
	if problems := t.check(); len(problems) > 0 {
		return nil, &ValidationError{Source: source, Errors: problems}
	}
	return &t, nil
}

// check enforces the cross-record rules the schema cannot express.
func (t *Table) check() []string {
	var problems []string
	names := make(map[string]int)
	tasks := make(map[string]string)
	for i, s := range t.Scenarios {
		if prev, ok := names[s.Name]; ok {
			problems = append(problems, fmt.Sprintf("scenarios[%d]: duplicate name %q (first at scenarios[%d])", i, s.Name, prev))
		} else {
			names[s.Name] = i
		}
		key := s.Section + "\x00" + s.Column + "\x00" + s.Task
		if prev, ok := tasks[key]; ok {
			problems = append(problems, fmt.Sprintf("scenarios[%d]: task %q in %s/%s already checked by %q", i, s.Task, s.Section, s.Column, prev))
		} else {
			tasks[key] = s.Name
		}
		seen := make(map[string]bool)
		for _, tag := range s.Tags {
			if seen[tag] {
				problems = append(problems, fmt.Sprintf("scenarios[%d]: duplicate tag %q", i, tag))
			}
			seen[tag] = true
		}
	}
	return problems
}

// Filter returns the scenarios whose name contains substr, ignoring case.
// An empty substr keeps everything.
func (t *Table) Filter(substr string) *Table {
	if substr == "" {
		return t
	}
	needle := strings.ToLower(substr)
	out := &Table{}
	for _, s := range t.Scenarios {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			out.Scenarios = append(out.Scenarios, s)
		}
	}
	return out
}

// Sections returns the distinct sections in table order.
func (t *Table) Sections() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range t.Scenarios {
		if !seen[s.Section] {
			seen[s.Section] = true
			out = append(out, s.Section)
		}
	}
	return out
}

func (t *Table) Len() int { return len(t.Scenarios) }
