// internal/scaffold/scaffold.go
package scaffold

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode"

	"pagewright/internal/config"
	"pagewright/internal/page"
)

// ArchetypesDir holds the templates used by CreateNewContent, relative to
// the input location.
const ArchetypesDir = "_archetypes"

// CreateNewSite writes a minimal working site into dir.
func CreateNewSite(dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return fmt.Errorf("directory %s is not empty", dir)
	}
	logger.Info("Scaffolding new site", slog.String("dir", dir))

	files := map[string]string{
		"site.yaml":                    siteYamlContent,
		"index.md":                     indexMdContent,
		"blog/hello-world.md":          helloWorldMdContent,
		"_views/default.html":          defaultViewContent,
		"_views/post-list.html":        postListViewContent,
		"_views/_partials/head.html":   headPartialContent,
		"_views/_partials/footer.html": footerPartialContent,
		"_assets/css/style.css":        styleCssContent,
		ArchetypesDir + "/default.md":  archetypeDefaultMdContent,
	}
	for path, content := range files {
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", path, err)
		}
	}
	logger.Info("Site scaffolded, run 'pagewright serve' inside it to preview", slog.String("dir", dir))
	return nil
}

// CreateNewContent renders the default archetype into
// <input>/<section>/<slug>.md and returns the created path.
func CreateNewContent(section, title, configPath string, now time.Time) (string, error) {
	site, err := config.LoadSiteConfig(configPath)
	if err != nil {
		return "", err
	}
	slug := Slugify(title)
	if slug == "" {
		return "", fmt.Errorf("title %q does not produce a usable file name", title)
	}

	path := filepath.Join(site.Input.Location, filepath.FromSlash(section), slug+".md")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	archetypePath := filepath.Join(site.Input.Location, ArchetypesDir, "default.md")
	tmplBytes, err := os.ReadFile(archetypePath)
	if errors.Is(err, fs.ErrNotExist) {
		tmplBytes = []byte(archetypeDefaultMdContent)
	} else if err != nil {
		return "", fmt.Errorf("could not read archetype file %s: %w", archetypePath, err)
	}

	tmpl, err := template.New("archetype").Parse(string(tmplBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse archetype file %s: %w", archetypePath, err)
	}

	data := struct {
		Title       string
		Author      string
		Category    string
		PublishedOn string
	}{
		Title:       title,
		Author:      site.Site.Author,
		Category:    section,
		PublishedOn: now.Format(page.PublishedOnLayout),
	}

	var output bytes.Buffer
	if err := tmpl.Execute(&output, data); err != nil {
		return "", fmt.Errorf("failed to execute archetype template: %w", err)
	}
	if err := os.WriteFile(path, output.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Slugify lowercases title and keeps letters and digits, joining words
// with dashes.
func Slugify(title string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			dash = false
			sb.WriteRune(r)
			continue
		}
		dash = true
	}
	return sb.String()
}

const siteYamlContent = `site:
  title: My Blog
  author: Your Name
  description: A new site powered by pagewright.
input:
  location: .
  virtual_pages:
    - slug: blog/page-{Page}
      title: Posts, page {Page}
      view: post-list
      paginated: true
      per_value: false
      page_size: 10
    - slug: categories/{Value}/page-{Page}
      title: "{Value}, page {Page}"
      view: post-list
      paginated: true
output:
  location: _site
  not_before_today: true
  rss:
    title: My Blog
    description: Latest posts
    link: http://localhost:4200
watch:
  debounce: 250ms
serve:
  port: 4200
`

const indexMdContent = `---
title: Home
rss-skip: true
index-skip: true
---

Welcome to your new site. Posts live in [the blog](blog/page-1.html).
`

const helloWorldMdContent = `---
title: Hello World
author: Your Name
category: news
published-on: 20240101
---

This is the first post. Edit [the home page](../index.md) or add posts with
` + "`pagewright new page blog \"My Post\"`" + `.
`

const archetypeDefaultMdContent = `---
title: {{.Title}}
author: {{.Author}}
category: {{.Category}}
published-on: {{.PublishedOn}}
description:
---

Write something meaningful here.
`

const headPartialContent = `<head>
  <meta charset="utf-8">
  <title>{{ .Title }} | {{ .Attribute "site-title" }}</title>
  <link rel="stylesheet" href="{{ .BaseHref }}css/style.css">
  {{ with .Attribute "description" }}<meta name="description" content="{{ . }}">{{ else }}<meta name="description" content="{{ .Attribute "site-description" }}">{{ end }}
</head>
`

const footerPartialContent = `<footer>
  <nav>
    <a href="{{ .BaseHref }}index.html">home</a>
    <a href="{{ .BaseHref }}blog/page-1.html">blog</a>
    <a href="{{ .BaseHref }}rss.xml">rss</a>
  </nav>
  <div class="copyright">&copy; {{ .Attribute "site-title" }}</div>
</footer>
`

const defaultViewContent = `<!DOCTYPE html>
<html>
{{ template "head" . }}
<body>
  <header>
    <div class="site-name">{{ .Attribute "site-title" }}</div>
    {{ with .Author }}<div class="author"><img src="{{ $.Gravatar }}" alt="" width="24" height="24"> {{ . }}</div>{{ end }}
  </header>
  <main>
    <h1>{{ .Title }}</h1>
    {{ with .PublishedOn }}{{ if not .IsZero }}<time>{{ date "2006-01-02" . }}</time>{{ end }}{{ end }}
    {{ .Content }}
  </main>
  {{ template "footer" . }}
</body>
</html>
`

const postListViewContent = `<!DOCTYPE html>
<html>
{{ template "head" . }}
<body>
  <main>
    <h1>{{ .Title }}</h1>
    <ul>
    {{ range .Pages }}
      <li><a href="{{ $.BaseHref }}{{ .Slug }}.html">{{ .Title }}</a> {{ date "2006-01-02" .PublishedOn }}</li>
    {{ else }}
      <li>Nothing here yet.</li>
    {{ end }}
    </ul>
    {{ $total := .Attribute "paginationTotalPages" }}
    {{ if $total }}<p class="pagination">Page {{ .Attribute "paginationCurrentPage" }} of {{ $total }}</p>{{ end }}
  </main>
  {{ template "footer" . }}
</body>
</html>
`

const styleCssContent = `body {
  font-family: sans-serif;
  max-width: 700px;
  margin: 2em auto;
  padding: 0 1em;
  line-height: 1.6;
  color: #222;
  background: #fdfdfd;
}
header { display: flex; justify-content: space-between; align-items: baseline; margin-bottom: 2em; }
.site-name { font-size: 0.9em; color: #777; font-style: italic; }
.author img { border-radius: 50%; vertical-align: middle; }
main { margin-bottom: 3em; }
footer { text-align: center; font-size: 0.9em; color: #555; }
footer nav a { color: #444; text-decoration: none; margin: 0 0.5em; }
footer nav a:hover { text-decoration: underline; }
.pagination { color: #777; }
`
