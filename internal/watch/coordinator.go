// internal/watch/coordinator.go
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pagewright/internal/logfields"
	"pagewright/internal/metrics"
)

// BuildFunc runs one pipeline execution.
type BuildFunc func(ctx context.Context) error

type CoordinatorConfig struct {
	// Debounce is how long the change stream must stay quiet before a
	// build starts. Every change restarts the wait.
	Debounce time.Duration
	Build    BuildFunc
	// AfterBuild, when set, is called with the result of every build from
	// the coordinator goroutine.
	AfterBuild func(err error)
	Recorder   metrics.Recorder
	Logger     *slog.Logger
}

// Coordinator turns a stream of change notifications into serialized
// rebuilds. A single goroutine owns the state: idle, pending (debounce
// timer armed) or building. Changes seen while building mark the run dirty
// and arm the timer again once the build finishes, so at most one build is
// ever running.
type Coordinator struct {
	cfg     CoordinatorConfig
	changes chan struct{}

	readyOnce sync.Once
	ready     chan struct{}
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Build == nil {
		return nil, errors.New("build function is required")
	}
	if cfg.Debounce < 0 {
		return nil, errors.New("debounce must be >= 0")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		cfg:     cfg,
		changes: make(chan struct{}, 1),
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once Run is consuming notifications.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Notify records a change. It never blocks: a notification already waiting
// to be consumed absorbs this one.
func (c *Coordinator) Notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Run consumes notifications until ctx is done. A build in flight when ctx
// ends is waited for. Build errors are logged and do not stop the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	var (
		timerC   <-chan time.Time
		building bool
		dirty    bool
		done     = make(chan error, 1)
	)

	c.readyOnce.Do(func() { close(c.ready) })

	for {
		select {
		case <-ctx.Done():
			if building {
				<-done
			}
			return nil

		case <-c.changes:
			if building {
				dirty = true
				continue
			}
			stopTimer(timer)
			timer.Reset(c.cfg.Debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			building = true
			c.cfg.Recorder.IncRebuildTriggered()
			go func() { done <- c.runBuild(ctx) }()

		case err := <-done:
			building = false
			if c.cfg.AfterBuild != nil {
				c.cfg.AfterBuild(err)
			}
			if dirty {
				dirty = false
				stopTimer(timer)
				timer.Reset(c.cfg.Debounce)
				timerC = timer.C
			}
		}
	}
}

func (c *Coordinator) runBuild(ctx context.Context) error {
	c.cfg.Logger.InfoContext(ctx, "Change detected, rebuilding")
	start := time.Now()
	err := c.cfg.Build(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.cfg.Logger.ErrorContext(ctx, "Rebuild failed", logfields.Error(err))
		return err
	}
	c.cfg.Logger.DebugContext(ctx, "Rebuild finished",
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return err
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
