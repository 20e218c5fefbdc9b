package fixtureapp

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed board.yaml
var defaultBoard []byte

type Card struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

type Column struct {
	Name  string `yaml:"name"`
	Cards []Card `yaml:"cards"`
}

type Section struct {
	Name     string   `yaml:"name"`
	Subtitle string   `yaml:"subtitle"`
	Slug     string   `yaml:"slug"`
	Columns  []Column `yaml:"columns"`
}

// Board is the data the fixture renders. The first section is the home
// section shown after login.
type Board struct {
	Sections []Section `yaml:"sections"`
}

// DefaultBoard returns the embedded board.
func DefaultBoard() (*Board, error) {
	return ParseBoard(defaultBoard)
}

// ParseBoard decodes a board from YAML and fills in missing slugs.
func ParseBoard(data []byte) (*Board, error) {
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse board: %w", err)
	}
	if len(b.Sections) == 0 {
		return nil, fmt.Errorf("board has no sections")
	}
	seen := make(map[string]bool)
	for i := range b.Sections {
		s := &b.Sections[i]
		if s.Slug == "" {
			s.Slug = Slugify(s.Name)
		}
		if seen[s.Slug] {
			return nil, fmt.Errorf("duplicate section slug %q", s.Slug)
		}
		seen[s.Slug] = true
	}
	return &b, nil
}

// Section returns the section with the given slug.
func (b *Board) Section(slug string) (*Section, bool) {
	for i := range b.Sections {
		if b.Sections[i].Slug == slug {
			return &b.Sections[i], true
		}
	}
	return nil, false
}

// Home returns the first section.
func (b *Board) Home() *Section {
	return &b.Sections[0]
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and joins its words with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
