// internal/builder/postprocess.go
package builder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// postProcess runs the configured commands in order after a successful
// build. A command exiting non-zero fails the build.
func (r *run) postProcess(ctx context.Context) error {
	for i, p := range r.cfg.PostProcessing {
		if p.LogMessage != "" {
			r.logger.InfoContext(ctx, p.LogMessage)
		}
		dir := r.cfg.Input.Location
		if p.WorkDir != "" {
			dir = filepath.Join(dir, p.WorkDir)
		}

		cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), p.Env...)
		logger := r.logger.With(slog.String("command", p.Command[0]), slog.Int("step", i+1))
		out := &lineLogger{ctx: ctx, logger: logger, level: slog.LevelInfo}
		errOut := &lineLogger{ctx: ctx, logger: logger, level: slog.LevelWarn}
		cmd.Stdout, cmd.Stderr = out, errOut

		err := cmd.Run()
		out.flush()
		errOut.flush()
		if err != nil {
			return fmt.Errorf("post-processing step %d (%s) failed: %w", i+1, p.Command[0], err)
		}
	}
	return nil
}

// lineLogger forwards process output to the logger one line at a time.
type lineLogger struct {
	ctx    context.Context
	logger *slog.Logger
	level  slog.Level

	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(l.buf.Next(i+1), "\r\n"))
		l.logger.Log(l.ctx, l.level, line)
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.logger.Log(l.ctx, l.level, l.buf.String())
		l.buf.Reset()
	}
}
