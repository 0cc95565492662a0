package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagewright/internal/config"
)

func touch(t *testing.T, root string, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher(config.Globbing{
		Includes: []string{"**/*.md"},
		Excludes: []string{"**/*.partial.md", "drafts/**"},
	})
	require.NoError(t, err)

	require.True(t, m.Match("index.md"))
	require.True(t, m.Match("blog/Post.MD"))
	require.False(t, m.Match("blog/header.partial.md"))
	require.False(t, m.Match("drafts/wip.md"))
	require.False(t, m.Match("style.css"))
}

func TestMatcher_InvalidGlob(t *testing.T) {
	_, err := NewMatcher(config.Globbing{Includes: []string{"[unclosed"}})
	require.ErrorContains(t, err, "invalid glob")
}

func TestScanner_SourcesSkipViewsOutputAndHidden(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{
		"index.md",
		"blog/a.md",
		"blog/b.markdown",
		"blog/nav.partial.md",
		"_views/default.md",
		"_site/old.md",
		".git/notes.md",
		"_assets/css/style.css",
	} {
		touch(t, root, f)
	}

	cfg := config.Default()
	cfg.Input.Location = root
	cfg.Output.Location = filepath.Join(root, "_site")

	s, err := New(cfg)
	require.NoError(t, err)

	sources, err := s.Sources()
	require.NoError(t, err)
	require.Equal(t, []string{"blog/a.md", "blog/b.markdown", "index.md"}, sources)

	assets, err := s.Assets()
	require.NoError(t, err)
	require.Equal(t, []string{"css/style.css"}, assets)
}

func TestScanner_MissingAssetsDir(t *testing.T) {
	cfg := config.Default()
	cfg.Input.Location = t.TempDir()

	s, err := New(cfg)
	require.NoError(t, err)
	assets, err := s.Assets()
	require.NoError(t, err)
	require.Empty(t, assets)
}

func TestScanner_Relevant(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Input.Location = root
	cfg.Output.Location = filepath.Join(root, "_site")

	s, err := New(cfg)
	require.NoError(t, err)

	for rel, want := range map[string]bool{
		"index.md":                   true,
		"blog/a.markdown":            true,
		"blog/nav.partial.md":        false,
		"notes.txt":                  false,
		"_archetypes/default.md":     false,
		"_views/default.html":        true,
		"_views/_partials/head.html": true,
		"_assets/css/style.css":      true,
		"_assets/readme.txt":         false,
	} {
		require.Equal(t, want, s.Relevant(filepath.Join(root, filepath.FromSlash(rel))), rel)
	}
	require.False(t, s.Relevant(filepath.Join(t.TempDir(), "elsewhere.md")))
}
