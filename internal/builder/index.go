// internal/builder/index.go
package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"pagewright/internal/logfields"
	"pagewright/internal/page"
)

// indexPublishedLayout formats index-publishedon values.
const indexPublishedLayout = "2006-01-02T15:04:05.000"

type searchIndex struct {
	Items []indexEntry `json:"items"`
}

type indexEntry struct {
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Attributes  orderedEntryMap `json:"attributes"`
}

// orderedEntryMap marshals as a JSON object keeping insertion order.
type orderedEntryMap struct {
	keys   []string
	values map[string]string
}

func (m *orderedEntryMap) set(k, v string) {
	if m.values == nil {
		m.values = map[string]string{}
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

func (m orderedEntryMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeJSON(&buf, m.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// writeIndex emits the JSON search index.
func (r *run) writeIndex(ctx context.Context, site []*page.SitePage) error {
	idx := r.cfg.Output.Index
	if !idx.Enabled {
		r.logger.InfoContext(ctx, "JSON index is disabled")
		return nil
	}
	r.logger.InfoContext(ctx, "Generating JSON index", logfields.Path(idx.Location))

	out := searchIndex{Items: []indexEntry{}}
	for _, p := range byPublication(site) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skipped(p, "index-skip") {
			continue
		}
		entry, err := r.indexEntry(p, idx.IndexedAttributes())
		if err != nil {
			return err
		}
		out.Items = append(out.Items, entry)
	}

	var buf bytes.Buffer
	if err := encodeJSON(&buf, out); err != nil {
		return err
	}
	return r.writeOutput(idx.Location, buf.Bytes())
}

func (r *run) indexEntry(p *page.SitePage, attributes []string) (indexEntry, error) {
	description, err := describe(p, "index-description", "description")
	if err != nil {
		return indexEntry{}, err
	}
	entry := indexEntry{Slug: p.Slug, Title: p.Title(), Description: description}
	for _, name := range attributes {
		var value string
		switch name {
		case "index-title":
			value = p.Title()
		case "index-body":
			if value, err = p.Body(); err != nil {
				return indexEntry{}, err
			}
		case "index-description":
			value = description
		case "index-gravatar":
			value = p.Gravatar()
		case "index-publishedon":
			value = p.PublishedOn().Format(indexPublishedLayout)
		default:
			value, _ = p.HeaderAttribute(name)
		}
		entry.Attributes.set(strings.TrimPrefix(name, "index-"), value)
	}
	return entry, nil
}
