// internal/watch/notifier.go
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"

	"pagewright/internal/logfields"
)

// Roots returns the absolute directories to watch: duplicates and
// directories nested inside another one are dropped because watches are
// recursive.
func Roots(dirs ...string) ([]string, error) {
	var abs []string
	for _, d := range dirs {
		if d == "" {
			continue
		}
		a, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		abs = append(abs, filepath.Clean(a))
	}
	slices.Sort(abs)

	var out []string
	for _, d := range abs {
		if slices.ContainsFunc(out, func(root string) bool { return within(d, root) }) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Notifier watches directory trees and calls notify for every relevant
// change. Directories created later are watched as they appear.
type Notifier struct {
	watcher  *fsnotify.Watcher
	ignore   []string
	relevant func(path string) bool
	notify   func()
	logger   *slog.Logger
}

// NewNotifier watches roots recursively. Paths inside ignore, usually the
// output directory, never trigger notify. When relevant is set, file events
// it rejects are dropped too; directory events always pass.
func NewNotifier(roots, ignore []string, relevant func(path string) bool, notify func(), logger *slog.Logger) (*Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{watcher: w, relevant: relevant, notify: notify, logger: logger}
	for _, dir := range ignore {
		a, err := filepath.Abs(dir)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		n.ignore = append(n.ignore, a)
	}
	for _, root := range roots {
		if err := n.addRecursive(root); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return n, nil
}

// Run forwards events until ctx is done or the watcher is closed.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return nil
			}
			n.handle(ctx, ev)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return nil
			}
			n.logger.WarnContext(ctx, "Watcher error", logfields.Error(err))
		}
	}
}

// Close releases the underlying watcher.
func (n *Notifier) Close() error {
	return n.watcher.Close()
}

func (n *Notifier) handle(ctx context.Context, ev fsnotify.Event) {
	if n.ignored(ev.Name) {
		return
	}
	fi, err := os.Stat(ev.Name)
	isDir := err == nil && fi.IsDir()
	if isDir && ev.Has(fsnotify.Create) {
		if err := n.addRecursive(ev.Name); err != nil {
			n.logger.WarnContext(ctx, "Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
		}
	}
	if !isDir && n.relevant != nil && !n.relevant(ev.Name) {
		n.logger.DebugContext(ctx, "Ignoring change to unmatched file", logfields.Path(ev.Name))
		return
	}
	n.logger.DebugContext(ctx, "File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	n.notify()
}

func (n *Notifier) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && n.ignored(path) {
			return filepath.SkipDir
		}
		if err := n.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (n *Notifier) ignored(path string) bool {
	if ignoredName(filepath.Base(path)) {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range n.ignore {
		if within(abs, dir) {
			return true
		}
	}
	return false
}

// ignoredName matches hidden files and editor swap files.
func ignoredName(base string) bool {
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	}
	return base == "Thumbs.db"
}
