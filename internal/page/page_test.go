package page

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage(attrs Attributes, globals map[string]string) *Page {
	return New(Options{
		Source:   "post.md",
		Slug:     "post",
		Document: &Document{Title: "Post", Attributes: attrs},
		Globals:  globals,
	})
}

func TestAttribute_HeaderWinsOverGlobals(t *testing.T) {
	p := newTestPage(NewAttributes("lang", "fr"), map[string]string{"lang": "en", "site": "blog"})

	require.Equal(t, "fr", p.Attribute("lang"))
	require.Equal(t, "blog", p.Attribute("site"))
	require.Equal(t, "", p.Attribute("missing"))

	_, ok := p.HeaderAttribute("site")
	require.False(t, ok)
}

func TestSlugFor(t *testing.T) {
	require.Equal(t, "blog/post-1/simple-test", SlugFor(`blog\post-1\simple-test.md`, ""))
	require.Equal(t, "index", SlugFor("index.md", ""))
	require.Equal(t, "notes.v2", SlugFor("notes.v2.markdown", ""))
	require.Equal(t, "simple-test", SlugFor("blog/a.md", "simple-test"))
	require.Equal(t, "custom/path", SlugFor("blog/a.md", "custom/path.adoc"))
	require.Equal(t, "custom/path", SlugFor("blog/a.md", `custom\path.md`))
	require.Equal(t, "release.v1", SlugFor("blog/a.md", "release.v1"))
}

func TestPublishedOn(t *testing.T) {
	p := newTestPage(NewAttributes(PublishedOnAttribute, "20240701"), nil)
	require.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), p.PublishedOn())

	undated := newTestPage(Attributes{}, nil)
	require.True(t, undated.PublishedOn().IsZero())

	malformed := newTestPage(NewAttributes(PublishedOnAttribute, "July 1st"), nil)
	require.True(t, malformed.PublishedOn().IsZero())
}

func TestBody_ComputedOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	p := New(Options{
		Document: &Document{Title: "T"},
		Body: func() (string, error) {
			calls.Add(1)
			time.Sleep(5 * time.Millisecond)
			return "<p>hi</p>", nil
		},
		Text: func(title, body string) string { return title + "\n" + body },
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := p.Body()
			assert.NoError(t, err)
			assert.Equal(t, "<p>hi</p>", body)
		}()
	}
	wg.Wait()

	text, err := p.Text()
	require.NoError(t, err)
	require.Equal(t, "T\n<p>hi</p>", text)
	require.Equal(t, int32(1), calls.Load())
}

func TestBody_FailureIsMemoized(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	p := New(Options{Body: func() (string, error) {
		calls.Add(1)
		return "", boom
	}})

	_, err := p.Body()
	require.ErrorIs(t, err, boom)
	_, err = p.Body()
	require.ErrorIs(t, err, boom)
	_, err = p.Text()
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(1), calls.Load())
}

func TestAttributes_KeepInsertionOrder(t *testing.T) {
	a := NewAttributes("b", "1", "a", "2")
	a.Set("c", "3")
	a.Set("b", "4")
	a.SetDefault("a", "ignored")

	require.Equal(t, []string{"b", "a", "c"}, a.Keys())
	v, _ := a.Get("b")
	require.Equal(t, "4", v)
	v, _ = a.Get("a")
	require.Equal(t, "2", v)

	clone := a.Clone()
	clone.Set("d", "5")
	require.Equal(t, 3, a.Len())
	require.Equal(t, 4, clone.Len())
}

func TestFinalize_SharesFullListing(t *testing.T) {
	a := newTestPage(Attributes{}, nil)
	b := newTestPage(Attributes{}, nil)

	site := Finalize([]*Page{a, b})
	require.Len(t, site, 2)
	require.Same(t, a, site[0].Page)
	require.Equal(t, []*Page{a, b}, site[1].Pages)
}

func TestNewVirtual(t *testing.T) {
	listing := []*Page{newTestPage(Attributes{}, nil)}
	v := NewVirtual(VirtualOptions{
		Slug:       "blog/author/bob/2",
		Title:      "Posts of bob",
		Attributes: NewAttributes("paginationCurrentPage", "2"),
		Globals:    map[string]string{"site": "x"},
		Listing:    listing,
	})

	require.Equal(t, "Posts of bob", v.Title())
	require.Equal(t, "2", v.Attribute("paginationCurrentPage"))
	require.Equal(t, "x", v.Attribute("site"))
	require.Equal(t, "../../../", v.BaseHref())
	body, err := v.Content()
	require.NoError(t, err)
	require.Empty(t, body)
	require.Len(t, v.Pages, 1)

	empty := NewVirtual(VirtualOptions{Slug: "tags/1"})
	require.NotNil(t, empty.Pages)
	require.Empty(t, empty.Pages)
}
