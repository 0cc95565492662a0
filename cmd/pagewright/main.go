// cmd/pagewright/main.go
package main

import (
	"cmp"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"pagewright/internal/builder"
	"pagewright/internal/config"
	"pagewright/internal/logfields"
	"pagewright/internal/metrics"
	"pagewright/internal/page"
	"pagewright/internal/scaffold"
	"pagewright/internal/scanner"
	"pagewright/internal/server"
	"pagewright/internal/watch"
)

// CLI holds the global flags and the subcommands.
type CLI struct {
	Config    string `short:"c" help:"Site configuration file" default:"site.yaml" type:"path"`
	Verbose   bool   `short:"v" help:"Enable debug logging"`
	LogFormat string `name:"log-format" help:"Log output format (text|json)" enum:"text,json" default:"text"`

	Build BuildCmd `cmd:"" help:"Build the site once"`
	Watch WatchCmd `cmd:"" help:"Build the site and rebuild whenever its sources change"`
	Serve ServeCmd `cmd:"" help:"Build and serve the site with live reload"`
	New   NewCmd   `cmd:"" help:"Scaffold a new site or page"`
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// buildFunc reloads the configuration on every call so edits to it are
// picked up by watch and serve. Gravatar URLs are kept across builds.
func (c *CLI) buildFunc(recorder metrics.Recorder) watch.BuildFunc {
	gravatars := page.NewGravatarCache()
	return func(ctx context.Context) error {
		cfg, err := config.LoadSiteConfig(c.Config)
		if err != nil {
			slog.Error("Failed to load site config", logfields.Path(c.Config), logfields.Error(err))
			return err
		}
		b, err := builder.New(cfg,
			builder.WithRecorder(recorder),
			builder.WithGravatars(gravatars),
			builder.WithLogger(slog.Default()))
		if err != nil {
			return err
		}
		_, err = b.Build(ctx)
		return err
	}
}

// watchDirs lists the existing directories a rebuild depends on.
func (c *CLI) watchDirs(cfg config.SiteConfig) []string {
	var dirs []string
	for _, dir := range []string{
		cfg.Input.Location,
		cfg.Input.ViewsDir(),
		cfg.Input.AssetsDir(),
		filepath.Dir(c.Config),
	} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// relevant reports which file changes can affect a build: the
// configuration, its .env file, and whatever the scanner would pick up.
func (c *CLI) relevant(cfg config.SiteConfig) (func(path string) bool, error) {
	sc, err := scanner.New(cfg)
	if err != nil {
		return nil, err
	}
	configFile, err := filepath.Abs(c.Config)
	if err != nil {
		return nil, err
	}
	envFile := filepath.Join(filepath.Dir(configFile), ".env")
	return func(path string) bool {
		if abs, err := filepath.Abs(path); err == nil && (abs == configFile || abs == envFile) {
			return true
		}
		return sc.Relevant(path)
	}, nil
}

// initialBuild runs build once before watching starts. A failure is
// reported and left for the next edit to fix.
func initialBuild(ctx context.Context, build watch.BuildFunc, logger *slog.Logger) {
	if err := build(ctx); err != nil {
		logger.WarnContext(ctx, "Initial build failed, waiting for changes", logfields.Error(err))
	}
}

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Clean bool `help:"Empty the output directory before building"`
}

func (b *BuildCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := config.LoadSiteConfig(root.Config)
	if err != nil {
		return err
	}
	cfg.Output.Clean = cfg.Output.Clean || b.Clean
	bld, err := builder.New(cfg)
	if err != nil {
		return err
	}
	_, err = bld.Build(ctx)
	return err
}

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period before a rebuild starts (overrides watch.debounce)"`
}

func (w *WatchCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := config.LoadSiteConfig(root.Config)
	if err != nil {
		return err
	}
	relevant, err := root.relevant(cfg)
	if err != nil {
		return err
	}
	build := root.buildFunc(metrics.NoopRecorder{})
	initialBuild(ctx, build, slog.Default())

	return watch.Watch(ctx, watch.Options{
		Dirs:     root.watchDirs(cfg),
		Ignore:   []string{cfg.Output.Location},
		Relevant: relevant,
		Debounce: cmp.Or(w.Debounce, cfg.Watch.Debounce),
		Build:    build,
	})
}

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port    int  `short:"p" help:"Port to listen on (overrides serve.port)"`
	NoWatch bool `name:"no-watch" help:"Serve without rebuilding on changes"`
}

func (s *ServeCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := config.LoadSiteConfig(root.Config)
	if err != nil {
		return err
	}
	relevant, err := root.relevant(cfg)
	if err != nil {
		return err
	}
	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	srv := server.New(server.Config{
		Port:      cmp.Or(s.Port, cfg.Serve.Port),
		OutputDir: cfg.Output.Location,
		Build:     root.buildFunc(recorder),
		Watch:     cfg.Serve.Watch && !s.NoWatch,
		Debounce:  cfg.Watch.Debounce,
		WatchDirs: root.watchDirs(cfg),
		Relevant:  relevant,
		Metrics:   metrics.HTTPHandler(reg),
		Recorder:  recorder,
	})
	return srv.Run(ctx)
}

// NewCmd groups the scaffolding commands.
type NewCmd struct {
	Site NewSiteCmd `cmd:"" help:"Create a new site in an empty directory"`
	Page NewPageCmd `cmd:"" help:"Create a page in a section from the default archetype"`
}

type NewSiteCmd struct {
	Dir string `arg:"" help:"Directory to create the site in" type:"path"`
}

func (n *NewSiteCmd) Run() error {
	return scaffold.CreateNewSite(n.Dir, slog.Default())
}

type NewPageCmd struct {
	Section string `arg:"" help:"Section (subdirectory) the page belongs to"`
	Title   string `arg:"" help:"Page title"`
}

func (n *NewPageCmd) Run(root *CLI) error {
	path, err := scaffold.CreateNewContent(n.Section, n.Title, root.Config, time.Now())
	if err != nil {
		return err
	}
	slog.Info("Created page", logfields.Path(path))
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("pagewright"),
		kong.Description("A static site generator for markdown sites with feeds, indexes and paginated listings."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli); err != nil {
		slog.Error("Command failed", logfields.Error(err))
		stop()
		os.Exit(1)
	}
}
