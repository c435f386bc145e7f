// Package web renders the HTML pages wsedge serves itself.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"
)

//go:embed templates/*.html
var tmplFS embed.FS

var (
	once  sync.Once
	pages map[string]*template.Template
)

// load parses every page on top of its own copy of base so that each page
// can define the same "title" and "content" blocks.
func load() {
	base := template.Must(template.ParseFS(tmplFS, "templates/base.html"))
	files, err := fs.Glob(tmplFS, "templates/*.html")
	if err != nil {
		panic(err)
	}
	pages = make(map[string]*template.Template, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		if name == "base" {
			continue
		}
		pages[name] = template.Must(template.Must(base.Clone()).ParseFS(tmplFS, f))
	}
}

// Render writes the named page to w. data is enriched with Year.
func Render(w io.Writer, name string, data map[string]any) error {
	once.Do(load)
	t, ok := pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Year"] = time.Now().Year()
	if err := t.ExecuteTemplate(w, "base.html", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}
