package view

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeView(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

type model struct {
	Title string
	When  time.Time
	Tags  string
}

func TestTemplateRenderer_ViewWithPartial(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "default.html", `{{template "header" .}}<h1>{{.Title}}</h1>{{date "2006-01-02" .When}}`)
	writeView(t, dir, "_partials/header.html", `<header>{{.Title}}</header>`)

	r := NewTemplateRenderer(dir)
	out, err := r.Render("default", model{Title: "A & B", When: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Equal(t, "<header>A &amp; B</header><h1>A &amp; B</h1>2024-01-02", out)
}

func TestTemplateRenderer_CachesUntilReset(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "list.html", `v1 {{range split .Tags ","}}[{{.}}]{{end}}`)

	r := NewTemplateRenderer(dir)
	out, err := r.Render("list", model{Tags: "a, b,,c"})
	require.NoError(t, err)
	require.Equal(t, "v1 [a][b][c]", out)

	writeView(t, dir, "list.html", `v2`)
	out, err = r.Render("list", model{})
	require.NoError(t, err)
	require.Equal(t, "v1 ", out)

	r.Reset()
	out, err = r.Render("list", model{})
	require.NoError(t, err)
	require.Equal(t, "v2", out)
}

func TestTemplateRenderer_Errors(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "broken.html", `{{.Missing`)
	writeView(t, dir, "fails.html", `{{.Nope}}`)
	r := NewTemplateRenderer(dir)

	_, err := r.Render("absent", nil)
	require.ErrorContains(t, err, "failed to read view absent")

	_, err = r.Render("broken", nil)
	require.ErrorContains(t, err, "failed to parse view broken")

	_, err = r.Render("fails", model{})
	require.ErrorContains(t, err, "failed to execute view fails")

	_, err = r.Render("../escape", nil)
	require.ErrorIs(t, err, ErrInvalidViewName)
}
