// internal/builder/loader.go
package builder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"pagewright/internal/logfields"
	"pagewright/internal/markup"
	"pagewright/internal/page"
)

// queueDepth bounds the pending load tasks so the producer blocks instead of
// buffering every source path.
const queueDepth = 1024

// pageSet collects loaded pages from concurrent workers.
type pageSet struct {
	mu    sync.Mutex
	pages []*page.Page
}

func (s *pageSet) add(p *page.Page) {
	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()
}

// loadAll loads files with a bounded worker pool and returns once every load
// has settled. The first failure cancels the remaining work.
func (r *run) loadAll(ctx context.Context, files []string) ([]*page.Page, error) {
	set := &pageSet{}
	queue := make(chan string, queueDepth)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for _, f := range files {
			select {
			case queue <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range r.cfg.WorkerCount() {
		g.Go(func() error {
			for f := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				p, err := r.loadPage(gctx, f)
				if err != nil {
					return err
				}
				if p != nil {
					set.add(p)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set.pages, nil
}

// loadPage reads and parses one source file. It returns nil without error
// when the page is filtered out by its publication date.
func (r *run) loadPage(ctx context.Context, file string) (*page.Page, error) {
	lines, err := readLines(filepath.Join(r.scanner.InputDir(), filepath.FromSlash(file)))
	if err != nil {
		return nil, r.loadFailed(ctx, file, err)
	}
	doc, err := r.parser.Parse(lines)
	if err != nil {
		return nil, r.loadFailed(ctx, file, err)
	}

	if raw, ok := doc.Attributes.Get(page.PublishedOnAttribute); ok {
		published, err := page.ParsePublishedOn(raw)
		if err != nil {
			return nil, r.loadFailed(ctx, file, fmt.Errorf("invalid %s %q: %w", page.PublishedOnAttribute, raw, err))
		}
		if r.cfg.Output.NotBeforeToday && published.After(r.reference) {
			r.logger.InfoContext(ctx, "Skipping page published in the future",
				logfields.File(file),
				"published_on", raw)
			r.recorder.IncPagesSkipped()
			return nil, nil
		}
	} else if r.cfg.Output.NotBeforeToday {
		r.logger.DebugContext(ctx, "Page has no publication date, keeping it", logfields.File(file))
	}

	explicit, _ := doc.Attributes.Get("slug")
	slug := page.SlugFor(file, explicit)
	return page.New(page.Options{
		Source:    file,
		Slug:      slug,
		Document:  doc,
		Globals:   r.globals,
		Gravatars: r.gravatars,
		Body:      r.bodyRenderer(file, slug, doc),
		Text:      markup.PlainText,
	}), nil
}

// bodyRenderer defers body rendering to first use. The page memoizes the
// result, so a failure is logged once.
func (r *run) bodyRenderer(file, slug string, doc *page.Document) func() (string, error) {
	return func() (string, error) {
		html, err := r.body.Render(doc)
		if err != nil {
			r.logger.Error("Failed to render body", logfields.File(file), logfields.Error(err))
			return "", &RenderError{Slug: slug, File: file, Err: err}
		}
		return html, nil
	}
}

func (r *run) loadFailed(ctx context.Context, file string, err error) error {
	r.logger.ErrorContext(ctx, "Failed to load page", logfields.File(file), logfields.Error(err))
	return &LoadError{File: file, Err: err}
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("content file is not valid UTF-8")
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
