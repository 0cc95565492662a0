// internal/watch/watch.go
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pagewright/internal/logfields"
	"pagewright/internal/metrics"
)

// Options configures Watch.
type Options struct {
	Dirs       []string
	Ignore     []string
	// Relevant, when set, filters file events before they reach the
	// coordinator.
	Relevant   func(path string) bool
	Debounce   time.Duration
	Build      BuildFunc
	AfterBuild func(err error)
	Recorder   metrics.Recorder
	Logger     *slog.Logger
}

// Watch rebuilds after every settled batch of changes under Dirs until ctx
// is done. It does not build up front.
func Watch(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	coordinator, err := NewCoordinator(CoordinatorConfig{
		Debounce:   opts.Debounce,
		Build:      opts.Build,
		AfterBuild: opts.AfterBuild,
		Recorder:   opts.Recorder,
		Logger:     opts.Logger,
	})
	if err != nil {
		return err
	}
	roots, err := Roots(opts.Dirs...)
	if err != nil {
		return err
	}
	notifier, err := NewNotifier(roots, opts.Ignore, opts.Relevant, coordinator.Notify, opts.Logger)
	if err != nil {
		return fmt.Errorf("could not create file watcher: %w", err)
	}
	defer notifier.Close()
	for _, root := range roots {
		opts.Logger.Info("Watching directory", logfields.Path(root))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coordinator.Run(gctx) })
	g.Go(func() error { return notifier.Run(gctx) })
	return g.Wait()
}
