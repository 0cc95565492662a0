// internal/markup/parser.go
package markup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/verkaro/editml-go"
	"gopkg.in/yaml.v3"

	"pagewright/internal/page"
)

// ErrUnterminatedFrontMatter is returned when a document opens a front
// matter block without closing it.
var ErrUnterminatedFrontMatter = errors.New("front matter is not terminated by ---")

// Parser turns raw document lines into a Document.
type Parser interface {
	Parse(lines []string) (*page.Document, error)
}

// MarkdownParser reads Markdown documents with an optional YAML front matter
// block delimited by "---" lines.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse splits the front matter from the body. Front matter keys become
// header attributes in declaration order; title and subtitle are lifted into
// the header. Without a title key, a leading "# " heading is used instead.
func (p *MarkdownParser) Parse(lines []string) (*page.Document, error) {
	fm, body, err := splitFrontMatter(lines)
	if err != nil {
		return nil, err
	}

	attrs, err := parseAttributes(fm)
	if err != nil {
		return nil, err
	}

	doc := &page.Document{}
	if v, ok := attrs.Get("title"); ok {
		doc.Title = v
	}
	if v, ok := attrs.Get("subtitle"); ok {
		doc.Subtitle = v
	}
	if v, ok := attrs.Get("author"); ok {
		doc.Author = v
	}
	doc.Attributes = page.Attributes{}
	for _, k := range attrs.Keys() {
		if k == "title" || k == "subtitle" {
			continue
		}
		v, _ := attrs.Get(k)
		doc.Attributes.Set(k, v)
	}

	if doc.Title == "" {
		doc.Title, body = extractHeading(body)
	}

	text := strings.Join(body, "\n")
	if v, _ := doc.Attributes.Get("editml"); v == "true" {
		text, err = cleanEditML(text)
		if err != nil {
			return nil, err
		}
	}
	doc.Body = []byte(text)
	return doc, nil
}

func splitFrontMatter(lines []string) ([]string, []string, error) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, lines, nil
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return lines[1:i], lines[i+1:], nil
		}
	}
	return nil, nil, ErrUnterminatedFrontMatter
}

func parseAttributes(fm []string) (page.Attributes, error) {
	attrs := page.Attributes{}
	if len(fm) == 0 {
		return attrs, nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(strings.Join(fm, "\n")), &root); err != nil {
		return attrs, fmt.Errorf("failed to parse front matter: %w", err)
	}
	if len(root.Content) == 0 {
		return attrs, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return attrs, fmt.Errorf("front matter must be a mapping, got %s", kindName(mapping.Kind))
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		value, err := scalarValue(mapping.Content[i+1])
		if err != nil {
			return attrs, fmt.Errorf("front matter key %q: %w", key, err)
		}
		attrs.Set(key, value)
	}
	return attrs, nil
}

// scalarValue flattens a front matter value to a string. Lists of scalars
// are joined with commas so multi-valued attributes (tags, categories) can
// be declared either way.
func scalarValue(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "", nil
		}
		return n.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("list items must be scalars")
			}
			parts = append(parts, item.Value)
		}
		return strings.Join(parts, ","), nil
	case yaml.AliasNode:
		return scalarValue(n.Alias)
	default:
		return "", fmt.Errorf("unsupported value of kind %s", kindName(n.Kind))
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return strconv.Itoa(int(k))
}

// extractHeading takes the first "# " heading as the title when it is the
// first non-blank line of the body.
func extractHeading(body []string) (string, []string) {
	for i, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "# ") {
			return "", body
		}
		title := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		rest := make([]string, 0, len(body)-1)
		rest = append(rest, body[:i]...)
		rest = append(rest, body[i+1:]...)
		return title, rest
	}
	return "", body
}

// cleanEditML applies the EditML clean view, accepting every suggested edit.
func cleanEditML(raw string) (string, error) {
	nodes, parseIssues := editml.Parse(raw)
	if len(parseIssues) > 0 && parseIssues[0].Severity == editml.SeverityError {
		return "", fmt.Errorf("editml parsing error: %s", parseIssues[0].Message)
	}
	clean, transformIssues := editml.TransformCleanView(nodes)
	if len(transformIssues) > 0 && transformIssues[0].Severity == editml.SeverityError {
		return "", fmt.Errorf("editml transformation error: %s", transformIssues[0].Message)
	}
	return clean, nil
}
