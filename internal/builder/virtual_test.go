package builder

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagewright/internal/config"
	"pagewright/internal/page"
)

func definition(mutate func(*config.PageDefinition)) config.PageDefinition {
	d := config.DefaultPageDefinition()
	mutate(&d)
	return d
}

func attr(t *testing.T, sp *page.SitePage, key string) string {
	t.Helper()
	v, ok := sp.HeaderAttribute(key)
	require.True(t, ok, "missing %s on %s", key, sp.Slug)
	return v
}

func TestVirtual_PaginatedOnePagePerItem(t *testing.T) {
	s := newSite(t, map[string]string{
		"a.md": "---\ncategory: go\npublished-on: 20240101\n---\n# A",
		"b.md": "---\ncategory: go\npublished-on: 20240201\n---\n# B",
		"c.md": "---\ncategory: web\npublished-on: 20240301\n---\n# C",
		"d.md": "# Not listed",
	})
	s.cfg.Input.VirtualPages = []config.PageDefinition{definition(func(d *config.PageDefinition) {
		d.Slug = "blog/page-{Page}"
		d.Title = "Posts {Page}"
		d.Paginated = true
		d.PerValue = false
		d.PageSize = 1
		d.View = "list"
	})}

	_, err := s.builder(t).Run(t.Context())
	require.NoError(t, err)

	// Newest first: published-on ascending, then reversed.
	for i, want := range []string{"C", "B", "A"} {
		slug := fmt.Sprintf("blog/page-%d", i+1)
		require.FileExists(t, filepath.Join(s.out, "blog", fmt.Sprintf("page-%d.html", i+1)))
		sp := s.views.get(t, slug)
		require.Equal(t, fmt.Sprintf("Posts %d", i+1), sp.Title())
		require.Equal(t, "3", attr(t, sp, PaginationTotalPages))
		require.Equal(t, fmt.Sprint(i+1), attr(t, sp, PaginationCurrentPage))
		require.Equal(t, "", attr(t, sp, PaginationAttributeValue))
		require.Len(t, sp.Pages, 1)
		require.Equal(t, want, sp.Pages[0].Title())
		require.Equal(t, "list", s.views.views[slug])
	}
}

func TestVirtual_EmptySelectionStillRendersFirstPage(t *testing.T) {
	s := newSite(t, map[string]string{"a.md": "# No category"})
	s.cfg.Input.VirtualPages = []config.PageDefinition{definition(func(d *config.PageDefinition) {
		d.Slug = "archive/{Page}"
		d.Paginated = true
		d.PerValue = false
	})}

	_, err := s.builder(t).Run(t.Context())
	require.NoError(t, err)

	sp := s.views.get(t, "archive/1")
	require.Empty(t, sp.Pages)
	require.NotNil(t, sp.Pages)
	require.Equal(t, "1", attr(t, sp, PaginationTotalPages))
	require.Equal(t, "1", attr(t, sp, PaginationCurrentPage))
}

func TestVirtual_ChunkCount(t *testing.T) {
	files := map[string]string{}
	for i := range 5 {
		files[fmt.Sprintf("p%d.md", i)] = fmt.Sprintf("---\ncategory: x\npublished-on: 2024010%d\n---\n# P%d", i+1, i)
	}
	s := newSite(t, files)
	s.cfg.Input.VirtualPages = []config.PageDefinition{definition(func(d *config.PageDefinition) {
		d.Slug = "list/{Page}"
		d.Paginated = true
		d.PerValue = false
		d.PageSize = 2
	})}

	_, err := s.builder(t).Run(t.Context())
	require.NoError(t, err)

	require.Len(t, s.views.get(t, "list/1").Pages, 2)
	require.Len(t, s.views.get(t, "list/2").Pages, 2)
	last := s.views.get(t, "list/3")
	require.Len(t, last.Pages, 1)
	require.Equal(t, "3", attr(t, last, PaginationTotalPages))
	require.NoFileExists(t, filepath.Join(s.out, "list", "4.html"))
}

func TestVirtual_PerValueGroups(t *testing.T) {
	s := newSite(t, map[string]string{
		"a.md": "---\ntags: \"a, b\"\npublished-on: 20240101\n---\n# A",
		"b.md": "---\ntags: b,,\npublished-on: 20240102\n---\n# B",
	})
	s.cfg.Input.VirtualPages = []config.PageDefinition{definition(func(d *config.PageDefinition) {
		d.Slug = "tags/{Value}/{Page}"
		d.Title = "Tag {Value}"
		d.Paginated = true
		d.CriteriaAttribute = "tags"
		d.Attributes = map[string]string{PaginationAttributeValue: "overridden", "layout": "tags"}
	})}

	_, err := s.builder(t).Run(t.Context())
	require.NoError(t, err)

	tagA := s.views.get(t, "tags/a/1")
	require.Equal(t, "Tag a", tagA.Title())
	require.Len(t, tagA.Pages, 1)
	require.Equal(t, "A", tagA.Pages[0].Title())
	require.Equal(t, "overridden", attr(t, tagA, PaginationAttributeValue))
	require.Equal(t, "tags", attr(t, tagA, "layout"))

	tagB := s.views.get(t, "tags/b/1")
	require.Len(t, tagB.Pages, 2)
	require.Equal(t, "B", tagB.Pages[0].Title())
	require.Equal(t, "1", attr(t, tagB, PaginationTotalPages))

	require.NoFileExists(t, filepath.Join(s.out, "tags", "1.html"))
}

func TestVirtual_NotPaginated(t *testing.T) {
	s := newSite(t, map[string]string{
		"a.md": "---\ncategory: x\n---\n# A",
		"b.md": "---\ncategory: y\n---\n# B",
	})
	s.cfg.Input.VirtualPages = []config.PageDefinition{definition(func(d *config.PageDefinition) {
		d.Slug = "all{Value}-{Page}"
		d.Title = "All"
		d.Paginated = false
	})}

	_, err := s.builder(t).Run(t.Context())
	require.NoError(t, err)

	sp := s.views.get(t, "all-1")
	require.Len(t, sp.Pages, 2)
	require.False(t, sp.Document.Attributes.Has(PaginationTotalPages))
}

func TestVirtual_SlugCollidesWithContentPage(t *testing.T) {
	s := newSite(t, map[string]string{"blog/1.md": "---\ncategory: x\n---\n# One"})
	s.cfg.Input.VirtualPages = []config.PageDefinition{definition(func(d *config.PageDefinition) {
		d.Slug = "blog/{Page}"
		d.Paginated = true
		d.PerValue = false
	})}

	_, err := s.builder(t).Run(t.Context())
	require.ErrorIs(t, err, ErrDuplicateSlug)
}

func loadedPage(title, order string) *page.Page {
	attrs := page.NewAttributes("category", "x")
	if order != "" {
		attrs.Set("rank", order)
	}
	return page.New(page.Options{
		Slug:     title,
		Document: &page.Document{Title: title, Attributes: attrs},
	})
}

func titles(pages []*page.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Title()
	}
	return out
}

func TestSelectPages_ReverseAfterStableSort(t *testing.T) {
	loaded := []*page.Page{
		loadedPage("first-1", "1"),
		loadedPage("missing", ""),
		loadedPage("second-1", "1"),
		loadedPage("two", "2"),
		page.New(page.Options{Slug: "other", Document: &page.Document{Title: "other"}}),
	}

	asc := selectPages(loaded, definition(func(d *config.PageDefinition) {
		d.OrderByAttribute = "rank"
		d.ReverseOrderBy = false
	}))
	require.Equal(t, []string{"missing", "first-1", "second-1", "two"}, titles(asc))

	// Equal keys come out in reverse load order, unlike a descending sort.
	desc := selectPages(loaded, definition(func(d *config.PageDefinition) {
		d.OrderByAttribute = "rank"
	}))
	require.Equal(t, []string{"two", "second-1", "first-1", "missing"}, titles(desc))
}

func TestGroupByValue_FirstSeenOrder(t *testing.T) {
	p1 := page.New(page.Options{Document: &page.Document{Title: "1", Attributes: page.NewAttributes("tags", "go, web")}})
	p2 := page.New(page.Options{Document: &page.Document{Title: "2", Attributes: page.NewAttributes("tags", " ,web,cli")}})

	groups := groupByValue([]*page.Page{p1, p2}, "tags")
	require.Len(t, groups, 3)
	require.Equal(t, "go", groups[0].value)
	require.Equal(t, "web", groups[1].value)
	require.Equal(t, []string{"1", "2"}, titles(groups[1].pages))
	require.Equal(t, "cli", groups[2].value)
}

func TestSubstitute(t *testing.T) {
	require.Equal(t, "tags/go/2", substitute("tags/{Value}/{Page}", "2", "go"))
	require.Equal(t, "blog/1", substitute("blog/{Page}", "1", ""))
}
