// internal/builder/builder.go
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pagewright/internal/config"
	"pagewright/internal/logfields"
	"pagewright/internal/markup"
	"pagewright/internal/metrics"
	"pagewright/internal/page"
	"pagewright/internal/scanner"
	"pagewright/internal/view"
)

// SourceScanner discovers source and asset files.
type SourceScanner interface {
	InputDir() string
	Sources() ([]string, error)
	AssetsDir() string
	Assets() ([]string, error)
}

// BodyRenderer converts a parsed document body to HTML.
type BodyRenderer interface {
	Render(doc *page.Document) (string, error)
}

// Builder turns a content tree into a static site. One Builder may run many
// builds, but never two at once; the rebuild coordinator guarantees that.
type Builder struct {
	cfg       config.SiteConfig
	parser    markup.Parser
	body      BodyRenderer
	views     view.Renderer
	scanner   SourceScanner
	gravatars *page.GravatarCache
	recorder  metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
	globals   map[string]string
}

// Option customizes a Builder.
type Option func(*Builder)

func WithParser(p markup.Parser) Option { return func(b *Builder) { b.parser = p } }
func WithBodyRenderer(r BodyRenderer) Option { return func(b *Builder) { b.body = r } }
func WithViews(r view.Renderer) Option { return func(b *Builder) { b.views = r } }
func WithScanner(s SourceScanner) Option { return func(b *Builder) { b.scanner = s } }
func WithRecorder(r metrics.Recorder) Option { return func(b *Builder) { b.recorder = r } }
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }
func WithGravatars(c *page.GravatarCache) Option { return func(b *Builder) { b.gravatars = c } }

// New validates cfg and wires a Builder for it. Collaborators not set through options get
// the defaults: Markdown parsing, goldmark rendering and html/template views
// read from the configured views directory.
func New(cfg config.SiteConfig, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
		globals:  cfg.Globals(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.parser == nil {
		b.parser = markup.NewMarkdownParser()
	}
	if b.body == nil {
		b.body = markup.NewBodyRenderer(cfg.Output.UnsafeHTML)
	}
	if b.views == nil {
		b.views = view.NewTemplateRenderer(cfg.Input.ViewsDir())
	}
	if b.scanner == nil {
		s, err := scanner.New(cfg)
		if err != nil {
			return nil, err
		}
		b.scanner = s
	}
	if b.gravatars == nil {
		b.gravatars = page.NewGravatarCache()
	}
	return b, nil
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() config.SiteConfig { return b.cfg }

// run carries the state of a single pipeline execution.
type run struct {
	*Builder
	id        string
	reference time.Time
	logger    *slog.Logger
	slugs     *slugRegistry
}

func (b *Builder) newRun(id string) *run {
	return &run{
		Builder:   b,
		id:        id,
		reference: b.now(),
		logger:    b.logger.With(logfields.RunID(id)),
		slugs:     newSlugRegistry(),
	}
}

// Run executes the content pipeline: load every source, then emit the RSS
// feed, the JSON index, the content pages and the virtual pages. It returns
// the number of pages kept after filtering.
func (b *Builder) Run(ctx context.Context) (int, error) {
	return b.newRun(uuid.NewString()).pipeline(ctx)
}

func (r *run) pipeline(ctx context.Context) (int, error) {
	files, err := r.scanner.Sources()
	if err != nil {
		return 0, err
	}

	start := time.Now()
	pages, err := r.loadAll(ctx, files)
	if err != nil {
		return 0, err
	}
	r.phaseDone(ctx, "load", start, len(pages))
	r.recorder.SetPagesLoaded(len(pages))

	site := page.Finalize(pages)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(r.timed(gctx, "rss", func() error { return r.writeRSS(gctx, site) }))
	g.Go(r.timed(gctx, "index", func() error { return r.writeIndex(gctx, site) }))
	g.Go(r.timed(gctx, "pages", func() error { return r.renderPages(gctx, site) }))
	g.Go(r.timed(gctx, "virtual", func() error { return r.renderVirtualPages(gctx, site) }))
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(pages), nil
}

func (r *run) timed(ctx context.Context, phase string, fn func() error) func() error {
	return func() error {
		start := time.Now()
		if err := fn(); err != nil {
			return err
		}
		r.phaseDone(ctx, phase, start, -1)
		return nil
	}
}

func (r *run) phaseDone(ctx context.Context, phase string, start time.Time, count int) {
	d := time.Since(start)
	r.recorder.ObservePhaseDuration(phase, d)
	attrs := []any{logfields.Phase(phase), logfields.DurationMS(float64(d.Microseconds()) / 1000)}
	if count >= 0 {
		attrs = append(attrs, logfields.Count(count))
	}
	r.logger.DebugContext(ctx, "Phase complete", attrs...)
}

// Result summarizes a finished build.
type Result struct {
	RunID    string
	Pages    int
	Assets   int
	Duration time.Duration
}

// Build runs a complete site build: optional output cleaning, the content
// pipeline concurrently with the asset copy, then post-processing.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	r := b.newRun(uuid.NewString())
	start := time.Now()
	res, err := r.build(ctx)
	res.RunID = r.id
	res.Duration = time.Since(start)

	b.recorder.ObserveBuildDuration(res.Duration)
	switch {
	case err == nil:
		b.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
		r.logger.InfoContext(ctx, "Build complete",
			slog.Int("pages", res.Pages),
			slog.Int("assets", res.Assets),
			logfields.DurationMS(float64(res.Duration.Microseconds())/1000))
	case errors.Is(err, context.Canceled):
		b.recorder.IncBuildOutcome(metrics.OutcomeCanceled)
		r.logger.InfoContext(ctx, "Build canceled")
	default:
		b.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		r.logger.ErrorContext(ctx, "Build failed", logfields.Error(err))
	}
	return res, err
}

func (r *run) build(ctx context.Context) (Result, error) {
	if r.views != nil {
		if resetter, ok := r.views.(interface{ Reset() }); ok {
			resetter.Reset()
		}
	}

	out := r.cfg.Output.Location
	if err := os.MkdirAll(out, 0o755); err != nil {
		return Result{}, err
	}
	if r.cfg.Output.Clean {
		r.logger.InfoContext(ctx, "Cleaning destination directory", logfields.Path(out))
		if err := cleanDir(out); err != nil {
			return Result{}, fmt.Errorf("failed to clean %s: %w", out, err)
		}
	}

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.pipeline(gctx)
		res.Pages = n
		return err
	})
	g.Go(func() error {
		n, err := r.copyAssets(gctx)
		res.Assets = n
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	if err := r.postProcess(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// cleanDir removes the contents of dir but keeps dir itself, so a server
// holding it open keeps serving.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// copyAssets copies the matching files of the assets directory to the
// output directory, keeping their relative paths.
func (r *run) copyAssets(ctx context.Context) (int, error) {
	start := time.Now()
	files, err := r.scanner.Assets()
	if err != nil {
		return 0, err
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		src := filepath.Join(r.scanner.AssetsDir(), filepath.FromSlash(rel))
		dest := filepath.Join(r.cfg.Output.Location, filepath.FromSlash(rel))
		if err := copyFile(src, dest); err != nil {
			return 0, fmt.Errorf("failed to copy asset %s: %w", rel, err)
		}
	}
	r.phaseDone(ctx, "assets", start, len(files))
	return len(files), nil
}

func copyFile(srcPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
