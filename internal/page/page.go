// internal/page/page.go
package page

import (
	"path"
	"strings"
	"time"
)

// PublishedOnAttribute holds the publication date in yyyyMMdd form.
const PublishedOnAttribute = "published-on"

// PublishedOnLayout is the Go layout for PublishedOnAttribute values.
const PublishedOnLayout = "20060102"

// sourceExtensions are stripped from explicit slugs.
var sourceExtensions = []string{".md", ".markdown", ".adoc", ".asciidoc"}

// Page is one loaded unit of content. It is immutable once built; the
// rendered body and plain text are derived lazily and memoized.
type Page struct {
	// Source is the source-relative identity used at load time. It is empty
	// for virtual pages.
	Source string
	// Slug is the output path stem.
	Slug     string
	Document *Document

	globals   map[string]string
	body      *Lazy[string]
	text      *Lazy[string]
	gravatars *GravatarCache
}

// Options configures New.
type Options struct {
	Source    string
	Slug      string
	Document  *Document
	Globals   map[string]string
	Gravatars *GravatarCache

	// Body renders the HTML body. It runs at most once.
	Body func() (string, error)
	// Text turns the title and the rendered body into plain text. It runs at
	// most once and only after Body succeeded.
	Text func(title, body string) string
}

// New builds an immutable Page.
func New(opts Options) *Page {
	doc := opts.Document
	if doc == nil {
		doc = &Document{}
	}
	gravatars := opts.Gravatars
	if gravatars == nil {
		gravatars = NewGravatarCache()
	}
	p := &Page{
		Source:    opts.Source,
		Slug:      opts.Slug,
		Document:  doc,
		globals:   opts.Globals,
		body:      NewLazy(opts.Body),
		gravatars: gravatars,
	}
	p.text = NewLazy(func() (string, error) {
		body, err := p.body.Get()
		if err != nil {
			return "", err
		}
		if opts.Text == nil {
			return doc.Title, nil
		}
		return opts.Text(doc.Title, body), nil
	})
	return p
}

// Lookup resolves key against the document header first, then the site-wide
// globals.
func (p *Page) Lookup(key string) (string, bool) {
	if v, ok := p.Document.Attributes.Get(key); ok {
		return v, true
	}
	v, ok := p.globals[key]
	return v, ok
}

// Attribute is Lookup without the presence flag, for templates.
func (p *Page) Attribute(key string) string {
	v, _ := p.Lookup(key)
	return v
}

// HeaderAttribute reads only the document header, ignoring globals.
func (p *Page) HeaderAttribute(key string) (string, bool) {
	return p.Document.Attributes.Get(key)
}

func (p *Page) Title() string    { return p.Document.Title }
func (p *Page) Subtitle() string { return p.Document.Subtitle }
func (p *Page) Author() string   { return p.Document.Author }

// Body returns the rendered HTML body, computing it on first use.
func (p *Page) Body() (string, error) { return p.body.Get() }

// Text returns the plain text rendering (title line first).
func (p *Page) Text() (string, error) { return p.text.Get() }

// PublishedOn returns the publish date from the header. A missing or
// malformed value yields the zero time, which sorts as the oldest date.
func (p *Page) PublishedOn() time.Time {
	raw, ok := p.Document.Attributes.Get(PublishedOnAttribute)
	if !ok {
		return time.Time{}
	}
	t, err := ParsePublishedOn(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Gravatar returns the avatar URL for the page author, "" if none is known.
func (p *Page) Gravatar() string {
	mail, _ := p.Document.Attributes.Get("mail")
	author, ok := p.Document.Attributes.Get("author")
	if !ok {
		author = p.Document.Author
	}
	return p.gravatars.URL(EmailFor(mail, author))
}

// ParsePublishedOn parses a yyyyMMdd date at midnight UTC.
func ParsePublishedOn(raw string) (time.Time, error) {
	return time.ParseInLocation(PublishedOnLayout, strings.TrimSpace(raw), time.UTC)
}

// SlugFor derives the output stem of a source file. An explicit slug wins
// (with a trailing source extension removed); otherwise the source path
// without its extension is used. Separators are normalized to '/'.
func SlugFor(source, explicit string) string {
	if explicit != "" {
		s := strings.ReplaceAll(explicit, `\`, "/")
		for _, ext := range sourceExtensions {
			if strings.HasSuffix(s, ext) {
				return strings.TrimSuffix(s, ext)
			}
		}
		return s
	}
	s := strings.ReplaceAll(source, `\`, "/")
	return strings.TrimSuffix(s, path.Ext(s))
}
