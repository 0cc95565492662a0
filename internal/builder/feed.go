// internal/builder/feed.go
package builder

import (
	"bytes"
	"cmp"
	"context"
	"encoding/xml"
	"slices"
	"strconv"
	"strings"
	"time"

	"pagewright/internal/logfields"
	"pagewright/internal/page"
)

// descriptionRunes bounds descriptions derived from the page text.
const descriptionRunes = 100

// byPublication orders pages newest first, then by title.
func byPublication(site []*page.SitePage) []*page.SitePage {
	out := slices.Clone(site)
	slices.SortStableFunc(out, func(a, b *page.SitePage) int {
		if c := b.PublishedOn().Compare(a.PublishedOn()); c != 0 {
			return c
		}
		return cmp.Compare(a.Title(), b.Title())
	})
	return out
}

// skipped reports whether the resolved attr is set to anything but "false".
func skipped(p *page.SitePage, attr string) bool {
	v, ok := p.Lookup(attr)
	return ok && v != "false"
}

// describe returns the first header attribute of keys that is present, or
// the start of the page text.
func describe(p *page.SitePage, keys ...string) (string, error) {
	for _, k := range keys {
		if v, ok := p.HeaderAttribute(k); ok {
			return v, nil
		}
	}
	text, err := p.Text()
	if err != nil {
		return "", err
	}
	return truncateRunes(text, descriptionRunes), nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// writeRSS emits the RSS 2.0 feed. Channel fields come from configuration
// and are written verbatim; item fields are escaped.
func (r *run) writeRSS(ctx context.Context, site []*page.SitePage) error {
	rss := r.cfg.Output.RSS
	if !rss.Enabled {
		r.logger.InfoContext(ctx, "RSS feed is disabled")
		return nil
	}
	r.logger.InfoContext(ctx, "Generating RSS feed", logfields.Path(rss.Location))

	now := r.reference.UTC().Format(time.RFC1123Z)
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n")
	sb.WriteString("<rss version=\"2.0\">\n")
	sb.WriteString("  <channel>\n")
	sb.WriteString("    <title>" + rss.Title + "</title>\n")
	sb.WriteString("    <description>" + rss.Description + "</description>\n")
	sb.WriteString("    <link>" + rss.Link + "</link>\n")
	sb.WriteString("    <copyright>" + rss.Copyright + "</copyright>\n")
	sb.WriteString("    <ttl>" + strconv.Itoa(rss.TTL) + "</ttl>\n")
	sb.WriteString("    <lastBuildDate>" + now + "</lastBuildDate>\n")
	sb.WriteString("    <pubDate>" + now + "</pubDate>\n")

	link := strings.TrimSuffix(rss.Link, "/")
	for _, p := range byPublication(site) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skipped(p, "rss-skip") {
			continue
		}
		description, err := describe(p, "rss-description", "description", "summary")
		if err != nil {
			return err
		}
		sb.WriteString("    <item>\n")
		sb.WriteString("      <title>" + escapeXML(p.Title()) + "</title>\n")
		sb.WriteString("      <description>" + escapeXML(description) + "</description>\n")
		sb.WriteString("      <link>" + escapeXML(link+"/"+p.Slug+".html") + "</link>\n")
		sb.WriteString("      <guid isPermaLink=\"false\">" + escapeXML(p.Source) + "</guid>\n")
		if published := p.PublishedOn(); !published.IsZero() {
			sb.WriteString("      <pubDate>" + published.Format(time.RFC1123Z) + "</pubDate>\n")
		}
		sb.WriteString("    </item>\n")
	}
	sb.WriteString("  </channel>\n</rss>\n")

	return r.writeOutput(rss.Location, []byte(sb.String()))
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
