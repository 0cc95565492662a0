// internal/server/server.go
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pagewright/internal/metrics"
	"pagewright/internal/watch"
)

// Config configures the preview server.
type Config struct {
	Port      int
	OutputDir string
	// Build produces the site into OutputDir. It runs once at startup and,
	// when Watch is set, again after every settled batch of changes.
	Build    watch.BuildFunc
	Watch    bool
	Debounce time.Duration
	// WatchDirs are watched recursively; OutputDir is always ignored.
	WatchDirs []string
	// Relevant, when set, decides which file changes trigger a rebuild.
	Relevant func(path string) bool
	// Metrics, when set, is exposed on /metrics.
	Metrics  http.Handler
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Server serves the built site with live reload.
type Server struct {
	cfg Config
	hub *Hub
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	return &Server{cfg: cfg, hub: newHub(cfg.Logger)}
}

// Handler routes the live-reload socket, metrics and the static files.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.hub, w, r)
	})
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", s.cfg.Metrics)
	}
	mux.Handle("/", liveReloadWrapper(http.FileServer(http.Dir(s.cfg.OutputDir))))
	return mux
}

// Reload tells every connected browser to reload.
func (s *Server) Reload() {
	s.hub.broadcastMessage([]byte("reload"))
}

// Run builds the site, then serves it until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Build != nil {
		if err := s.cfg.Build(ctx); err != nil {
			return fmt.Errorf("initial build failed: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Watch && s.cfg.Build != nil {
		g.Go(func() error {
			return watch.Watch(gctx, watch.Options{
				Dirs:     s.cfg.WatchDirs,
				Ignore:   []string{s.cfg.OutputDir},
				Relevant: s.cfg.Relevant,
				Debounce: s.cfg.Debounce,
				Build:    s.cfg.Build,
				AfterBuild: func(err error) {
					if err == nil {
						s.Reload()
					}
				},
				Recorder: s.cfg.Recorder,
				Logger:   s.cfg.Logger,
			})
		})
	}

	g.Go(func() error {
		s.cfg.Logger.Info("Serving site", slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.cfg.Logger.Info("Shutting down preview server")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func liveReloadWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		isHTML := strings.HasSuffix(r.URL.Path, ".html") || strings.HasSuffix(r.URL.Path, "/")
		if !isHTML {
			next.ServeHTTP(w, r)
			return
		}

		iw := newInterceptingWriter()
		next.ServeHTTP(iw, r)

		for key, values := range iw.Header() {
			if key == "Content-Length" {
				continue
			}
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}

		body := iw.body.Bytes()
		if iw.statusCode == http.StatusOK {
			body = bytes.Replace(body, []byte("</body>"), []byte(liveReloadScript+"</body>"), 1)
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.WriteHeader(iw.statusCode)
		_, _ = w.Write(body)
	})
}

// interceptingWriter buffers a response so the live-reload script can be
// injected before it is sent.
type interceptingWriter struct {
	body       *bytes.Buffer
	statusCode int
	header     http.Header
}

func newInterceptingWriter() *interceptingWriter {
	return &interceptingWriter{
		body:       new(bytes.Buffer),
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (iw *interceptingWriter) Header() http.Header {
	return iw.header
}

func (iw *interceptingWriter) Write(b []byte) (int, error) {
	return iw.body.Write(b)
}

func (iw *interceptingWriter) WriteHeader(statusCode int) {
	iw.statusCode = statusCode
}

const liveReloadScript = `
<script>
  (function() {
    let socket = new WebSocket("ws://" + window.location.host + "/ws");
    socket.onmessage = function(event) {
      if (event.data === "reload") {
        window.location.reload();
      }
    };
    socket.onerror = function() {
      console.error("Live reload connection error. Please restart 'pagewright serve'.");
    };
  })();
</script>
`
