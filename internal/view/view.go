// internal/view/view.go
package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Renderer turns a model into a document using a named view.
type Renderer interface {
	Render(view string, model any) (string, error)
}

// PartialsDir is the views subdirectory whose templates every view can use.
const PartialsDir = "_partials"

// ErrInvalidViewName is returned for names escaping the views directory.
var ErrInvalidViewName = errors.New("invalid view name")

// TemplateRenderer renders html/template views from a directory. A view
// named "post" is <dir>/post.html, parsed together with every template under
// <dir>/_partials. Compiled views are cached until Reset.
type TemplateRenderer struct {
	dir string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewTemplateRenderer returns a renderer reading views from dir.
func NewTemplateRenderer(dir string) *TemplateRenderer {
	return &TemplateRenderer{dir: dir, cache: map[string]*template.Template{}}
}

// Reset drops compiled views so edits on disk are picked up.
func (r *TemplateRenderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}

// Render executes view with model as its data.
func (r *TemplateRenderer) Render(view string, model any) (string, error) {
	tmpl, err := r.lookup(view)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, model); err != nil {
		return "", fmt.Errorf("failed to execute view %s: %w", view, err)
	}
	return buf.String(), nil
}

func (r *TemplateRenderer) lookup(view string) (*template.Template, error) {
	clean := filepath.ToSlash(filepath.Clean(view))
	if view == "" || strings.HasPrefix(clean, "../") || clean == ".." || filepath.IsAbs(view) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidViewName, view)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[clean]; ok {
		return t, nil
	}
	t, err := r.compile(clean)
	if err != nil {
		return nil, err
	}
	r.cache[clean] = t
	return t, nil
}

func (r *TemplateRenderer) compile(view string) (*template.Template, error) {
	path := filepath.Join(r.dir, filepath.FromSlash(view)+".html")
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read view %s: %w", view, err)
	}
	tmpl, err := template.New(view).Funcs(Funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse view %s: %w", view, err)
	}

	partials, err := filepath.Glob(filepath.Join(r.dir, PartialsDir, "*.html"))
	if err != nil {
		return nil, err
	}
	for _, p := range partials {
		b, err := os.ReadFile(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read partial %s: %w", p, err)
		}
		name := strings.TrimSuffix(filepath.Base(p), ".html")
		if _, err := tmpl.New(name).Parse(string(b)); err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", name, err)
		}
	}
	return tmpl, nil
}

// Funcs are available to every view.
var Funcs = template.FuncMap{
	"date": func(layout string, t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
	"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	"split": func(s, sep string) []string {
		var out []string
		for _, v := range strings.Split(s, sep) {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	},
}
