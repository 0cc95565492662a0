// internal/logfields/logfields.go
package logfields

import "log/slog"

// Canonical log field names shared by the build, watch and serve code paths.
const (
	KeyRunID      = "run_id"
	KeyFile       = "file"
	KeySlug       = "slug"
	KeyView       = "view"
	KeyPhase      = "phase"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Slug(s string) slog.Attr         { return slog.String(KeySlug, s) }
func View(v string) slog.Attr         { return slog.String(KeyView, v) }
func Phase(p string) slog.Attr        { return slog.String(KeyPhase, p) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
