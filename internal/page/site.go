// internal/page/site.go
package page

import (
	"html/template"

	"pagewright/internal/util"
)

// SitePage is a page bound to its site context: the listing it can iterate
// over. For content pages the listing is every loaded page; for virtual
// pages it is the slice the definition selected. SitePages are only built by
// Finalize and NewVirtual, after loading is complete, so the listing is
// never observed half-filled.
type SitePage struct {
	*Page
	Pages []*Page
}

// Finalize binds every loaded page to the full page set. The returned
// values share one read-only slice.
func Finalize(pages []*Page) []*SitePage {
	all := make([]*Page, len(pages))
	copy(all, pages)
	out := make([]*SitePage, len(all))
	for i, p := range all {
		out[i] = &SitePage{Page: p, Pages: all}
	}
	return out
}

// VirtualOptions configures NewVirtual.
type VirtualOptions struct {
	Slug       string
	Title      string
	Attributes Attributes
	Globals    map[string]string
	Listing    []*Page
	Gravatars  *GravatarCache
}

// NewVirtual synthesizes a page that has no source document.
func NewVirtual(opts VirtualOptions) *SitePage {
	p := New(Options{
		Slug: opts.Slug,
		Document: &Document{
			Title:      opts.Title,
			Attributes: opts.Attributes,
		},
		Globals:   opts.Globals,
		Gravatars: opts.Gravatars,
	})
	listing := opts.Listing
	if listing == nil {
		listing = []*Page{}
	}
	return &SitePage{Page: p, Pages: listing}
}

// BaseHref is the relative prefix from this page back to the output root.
func (s *SitePage) BaseHref() string {
	return util.ComputeBaseHref(s.Slug)
}

// Content is the rendered body as trusted HTML for templates.
func (s *SitePage) Content() (template.HTML, error) {
	body, err := s.Body()
	if err != nil {
		return "", err
	}
	return template.HTML(body), nil
}
