// internal/builder/virtual.go
package builder

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"pagewright/internal/config"
	"pagewright/internal/logfields"
	"pagewright/internal/page"
)

// Attributes set on paginated virtual pages.
const (
	PaginationTotalPages     = "paginationTotalPages"
	PaginationCurrentPage    = "paginationCurrentPage"
	PaginationAttributeValue = "paginationAttributeValue"
)

// renderVirtualPages generates the listing pages of every configured
// definition. Definitions run concurrently; the pages of one definition are
// written in order.
func (r *run) renderVirtualPages(ctx context.Context, site []*page.SitePage) error {
	defs := r.cfg.Input.VirtualPages
	if len(defs) == 0 {
		return nil
	}
	loaded := make([]*page.Page, len(site))
	for i, sp := range site {
		loaded[i] = sp.Page
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, def := range defs {
		g.Go(func() error {
			return r.renderDefinition(gctx, def, loaded)
		})
	}
	return g.Wait()
}

func (r *run) renderDefinition(ctx context.Context, def config.PageDefinition, loaded []*page.Page) error {
	selected := selectPages(loaded, def)
	logger := r.logger.With(slog.String("definition", def.Slug))

	if !def.Paginated {
		logger.WarnContext(ctx, "Virtual page without pagination, a content page would be simpler")
		attrs := definitionAttributes(def)
		return r.renderVirtual(ctx, def, "1", "", attrs, selected)
	}

	if !def.PerValue {
		logger.InfoContext(ctx, "Generating paginated pages", slog.String("criteria", def.CriteriaAttribute))
		return r.paginate(ctx, def, "", selected)
	}

	for _, group := range groupByValue(selected, def.CriteriaAttribute) {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Generating paginated pages",
			slog.String("criteria", def.CriteriaAttribute),
			slog.String("value", group.value))
		if err := r.paginate(ctx, def, group.value, group.pages); err != nil {
			return err
		}
	}
	return nil
}

// selectPages keeps the pages whose header carries the criteria attribute,
// sorted ascending by the order-by value and reversed afterwards when
// configured. Reversing the stable ascending order is not the same as a
// descending sort when keys are equal.
func selectPages(loaded []*page.Page, def config.PageDefinition) []*page.Page {
	var out []*page.Page
	for _, p := range loaded {
		if _, ok := p.HeaderAttribute(def.CriteriaAttribute); ok {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b *page.Page) int {
		av, _ := a.HeaderAttribute(def.OrderByAttribute)
		bv, _ := b.HeaderAttribute(def.OrderByAttribute)
		return cmp.Compare(av, bv)
	})
	if def.ReverseOrderBy {
		slices.Reverse(out)
	}
	return out
}

type valueGroup struct {
	value string
	pages []*page.Page
}

// groupByValue splits the comma separated criteria values of each page and
// groups pages per value, in first-seen order.
func groupByValue(pages []*page.Page, attr string) []valueGroup {
	var groups []valueGroup
	index := map[string]int{}
	for _, p := range pages {
		raw, _ := p.HeaderAttribute(attr)
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			i, ok := index[v]
			if !ok {
				i = len(groups)
				index[v] = i
				groups = append(groups, valueGroup{value: v})
			}
			groups[i].pages = append(groups[i].pages, p)
		}
	}
	return groups
}

// paginate renders pages in chunks of PageSize. An empty selection still
// produces page 1 so navigation links resolve.
func (r *run) paginate(ctx context.Context, def config.PageDefinition, value string, pages []*page.Page) error {
	chunks := slices.Collect(slices.Chunk(pages, max(def.PageSize, 1)))
	if len(chunks) == 0 {
		chunks = [][]*page.Page{nil}
	}
	total := strconv.Itoa(len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := strconv.Itoa(i + 1)
		attrs := definitionAttributes(def)
		attrs.SetDefault(PaginationTotalPages, total)
		attrs.SetDefault(PaginationAttributeValue, value)
		attrs.SetDefault(PaginationCurrentPage, current)
		if err := r.renderVirtual(ctx, def, current, value, attrs, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) renderVirtual(ctx context.Context, def config.PageDefinition, pageNumber, value string, attrs page.Attributes, listing []*page.Page) error {
	sp := page.NewVirtual(page.VirtualOptions{
		Slug:       substitute(def.Slug, pageNumber, value),
		Title:      substitute(def.Title, pageNumber, value),
		Attributes: attrs,
		Globals:    r.globals,
		Listing:    listing,
		Gravatars:  r.gravatars,
	})
	r.logger.DebugContext(ctx, "Rendering virtual page", logfields.Slug(sp.Slug), logfields.Count(len(sp.Pages)))
	return r.renderPage(ctx, sp, cmp.Or(def.View, DefaultView), "virtual page "+def.Slug)
}

// definitionAttributes copies the definition attributes in key order.
func definitionAttributes(def config.PageDefinition) page.Attributes {
	attrs := page.NewAttributes()
	for _, k := range slices.Sorted(maps.Keys(def.Attributes)) {
		attrs.Set(k, def.Attributes[k])
	}
	return attrs
}

func substitute(s, pageNumber, value string) string {
	return strings.NewReplacer("{Page}", pageNumber, "{Value}", value).Replace(s)
}
