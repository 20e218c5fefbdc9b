package fixtureapp

import (
	"bytes"
	"embed"
	"io"
	"path"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.html
var templateFS embed.FS

// embedLoader serves pongo2 templates from the embedded templates directory.
type embedLoader struct {
	fs  embed.FS
	dir string
}

func (l embedLoader) Abs(base, name string) string {
	return path.Clean(name)
}

func (l embedLoader) Get(name string) (io.Reader, error) {
	data, err := l.fs.ReadFile(path.Join(l.dir, name))
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func newTemplateSet() *pongo2.TemplateSet {
	return pongo2.NewSet("fixtureapp", embedLoader{fs: templateFS, dir: "templates"})
}
