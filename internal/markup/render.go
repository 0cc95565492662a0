// internal/markup/render.go
package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
	xhtml "golang.org/x/net/html"

	"pagewright/internal/page"
)

// BodyRenderer converts a document body to HTML. It is safe for concurrent
// use: goldmark and bluemonday policies are both reentrant.
type BodyRenderer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
	unsafe    bool
}

// NewBodyRenderer builds the renderer. With unsafe set, raw HTML from the
// sources is kept as-is instead of being sanitized.
func NewBodyRenderer(unsafe bool) *BodyRenderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AllowAttrs("id").Globally()
	return &BodyRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
				parser.WithASTTransformers(
					util.Prioritized(newSourceLinkTransformer(), 100),
				),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
		sanitizer: policy,
		unsafe:    unsafe,
	}
}

// Render returns the HTML body of doc.
func (r *BodyRenderer) Render(doc *page.Document) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(doc.Body, &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown with goldmark: %w", err)
	}
	if r.unsafe {
		return buf.String(), nil
	}
	return string(r.sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// PlainText flattens rendered HTML to text: the title on the first line,
// then every non-blank text run on its own line.
func PlainText(title, body string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteByte('\n')
	}
	z := xhtml.NewTokenizer(strings.NewReader(body))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return strings.TrimRight(sb.String(), "\n")
		case xhtml.StartTagToken:
			if isInvisible(z) {
				skip++
			}
		case xhtml.EndTagToken:
			if isInvisible(z) && skip > 0 {
				skip--
			}
		case xhtml.TextToken:
			if skip > 0 {
				continue
			}
			if t := strings.TrimSpace(string(z.Text())); t != "" {
				sb.WriteString(t)
				sb.WriteByte('\n')
			}
		}
	}
}

func isInvisible(z *xhtml.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
