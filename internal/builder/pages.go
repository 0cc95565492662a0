// internal/builder/pages.go
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"pagewright/internal/logfields"
	"pagewright/internal/page"
)

// DefaultView renders pages that do not name a view.
const DefaultView = "default"

// ErrDuplicateSlug is returned when two pages of one build resolve to the
// same output file.
var ErrDuplicateSlug = errors.New("duplicate slug")

// slugRegistry records which page owns each output slug during a run.
type slugRegistry struct {
	mu     sync.Mutex
	owners map[string]string
}

func newSlugRegistry() *slugRegistry {
	return &slugRegistry{owners: map[string]string{}}
}

func (s *slugRegistry) claim(slug, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.owners[slug]; ok {
		return fmt.Errorf("%w %q: produced by %s and %s", ErrDuplicateSlug, slug, prev, owner)
	}
	s.owners[slug] = owner
	return nil
}

// renderPages renders every content page with its view.
func (r *run) renderPages(ctx context.Context, site []*page.SitePage) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.WorkerCount())
	for _, sp := range site {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, ok := sp.Lookup("view")
			if !ok || v == "" {
				v = DefaultView
			}
			return r.renderPage(gctx, sp, v, sp.Source)
		})
	}
	return g.Wait()
}

// renderPage renders sp with view and writes <output>/<slug>.html. owner
// identifies the producer in collision reports.
func (r *run) renderPage(ctx context.Context, sp *page.SitePage, view, owner string) error {
	if err := r.slugs.claim(sp.Slug, owner); err != nil {
		return &RenderError{Slug: sp.Slug, Err: err}
	}
	html, err := r.views.Render(view, sp)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to render page",
			logfields.Slug(sp.Slug), logfields.View(view), logfields.Error(err))
		return &RenderError{View: view, Slug: sp.Slug, Err: err}
	}
	if err := r.writeOutput(sp.Slug+".html", []byte(html)); err != nil {
		return &RenderError{Slug: sp.Slug, Err: err}
	}
	r.logger.DebugContext(ctx, "Rendered page", logfields.Slug(sp.Slug), logfields.View(view))
	return nil
}

// writeOutput writes data to rel, a slash separated path below the output
// directory, creating parent directories.
func (r *run) writeOutput(rel string, data []byte) error {
	dest := filepath.Join(r.cfg.Output.Location, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
