package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sort"

	"github.com/Masterminds/sprig"
)

// Page names
const (
	Index     = "index.html"
	Add       = "add.html"
	Dashboard = "dashboard.html"
)

//go:embed src
var embeddedFS embed.FS

// Set holds one parsed template per page, each combined with the shared layouts.
type Set struct {
	pages map[string]*template.Template
}

// Load parses the embedded pages.
func Load() (*Set, error) {
	return LoadFS(embeddedFS)
}

// LoadFS parses pages from fsys, which must contain src/*.html and
// src/layouts/*.html.
func LoadFS(fsys fs.FS) (*Set, error) {
	names, err := fs.Glob(fsys, "src/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	set := &Set{pages: make(map[string]*template.Template, len(names))}
	for _, path := range names {
		name := path[len("src/"):]

		t, err := template.New(name).
			Funcs(sprig.FuncMap()).
			ParseFS(fsys, "src/layouts/*.html", path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		set.pages[name] = t
	}

	return set, nil
}

// Render executes page name into w. Output is buffered so a failing template
// writes nothing.
func (s *Set) Render(w io.Writer, name string, data any) error {
	t, ok := s.pages[name]
	if !ok {
		return fmt.Errorf("unknown template: %s", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

// Names returns the loaded page names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.pages))
	for name := range s.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
