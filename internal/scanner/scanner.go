// internal/scanner/scanner.go
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"pagewright/internal/config"
)

// Matcher applies include and exclude globs to slash separated relative
// paths. Matching is case-insensitive and a leading "**/" also matches files
// at the root.
type Matcher struct {
	includes []glob.Glob
	excludes []glob.Glob
}

// NewMatcher compiles the patterns of g.
func NewMatcher(g config.Globbing) (*Matcher, error) {
	includes, err := compileAll(g.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compileAll(g.Excludes)
	if err != nil {
		return nil, err
	}
	return &Matcher{includes: includes, excludes: excludes}, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		p = strings.ToLower(filepath.ToSlash(p))
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		out = append(out, g)
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			rg, err := glob.Compile(rest, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", p, err)
			}
			out = append(out, rg)
		}
	}
	return out, nil
}

// Match reports whether rel is included and not excluded.
func (m *Matcher) Match(rel string) bool {
	rel = strings.ToLower(filepath.ToSlash(rel))
	return anyMatch(m.includes, rel) && !anyMatch(m.excludes, rel)
}

func anyMatch(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// Scanner discovers the source and asset files of a site.
type Scanner struct {
	inputDir  string
	assetsDir string
	sources   *Matcher
	assets    *Matcher
	// skip holds absolute directories never descended into while scanning
	// sources.
	skip []string

	inputAbs  string
	assetsAbs string
	viewsAbs  string
}

// New builds a Scanner from the input section of cfg. The views and output
// directories are skipped when they sit inside the input directory.
func New(cfg config.SiteConfig) (*Scanner, error) {
	sources, err := NewMatcher(cfg.Input.Sources)
	if err != nil {
		return nil, fmt.Errorf("sources: %w", err)
	}
	assets, err := NewMatcher(cfg.Input.AssetFiles)
	if err != nil {
		return nil, fmt.Errorf("asset_files: %w", err)
	}
	s := &Scanner{
		inputDir:  cfg.Input.Location,
		assetsDir: cfg.Input.AssetsDir(),
		sources:   sources,
		assets:    assets,
	}
	for _, dir := range []string{cfg.Input.ViewsDir(), cfg.Output.Location} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		s.skip = append(s.skip, abs)
	}
	s.viewsAbs = s.skip[0]
	if s.inputAbs, err = filepath.Abs(s.inputDir); err != nil {
		return nil, err
	}
	if s.assetsAbs, err = filepath.Abs(s.assetsDir); err != nil {
		return nil, err
	}
	return s, nil
}

// Relevant reports whether a change to path can affect a build: any file
// below the views directory, or a file the source or asset globs select.
func (s *Scanner) Relevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	if rel, ok := relativeTo(s.viewsAbs, abs); ok && rel != "." {
		return true
	}
	if rel, ok := relativeTo(s.assetsAbs, abs); ok && s.assets.Match(rel) {
		return true
	}
	rel, ok := relativeTo(s.inputAbs, abs)
	return ok && s.sources.Match(rel)
}

func relativeTo(dir, path string) (string, bool) {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// InputDir is the root source paths are relative to.
func (s *Scanner) InputDir() string { return s.inputDir }

// AssetsDir is the root asset paths are relative to.
func (s *Scanner) AssetsDir() string { return s.assetsDir }

// Sources returns the matching source files relative to the input
// directory, in lexical order.
func (s *Scanner) Sources() ([]string, error) {
	return walk(s.inputDir, s.sources, s.skip)
}

// Assets returns the matching asset files relative to the assets
// directory. A missing assets directory yields no files.
func (s *Scanner) Assets() ([]string, error) {
	if _, err := os.Stat(s.assetsDir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return walk(s.assetsDir, s.assets, nil)
}

func walk(root string, m *Matcher, skip []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || isSkipped(path, skip) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m.Match(rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return out, nil
}

func isSkipped(path string, skip []string) bool {
	if len(skip) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, s := range skip {
		if abs == s {
			return true
		}
	}
	return false
}
