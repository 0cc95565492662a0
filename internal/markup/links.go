// internal/markup/links.go
package markup

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var sourceLinkSuffixes = [][]byte{[]byte(".markdown"), []byte(".md")}

// sourceLinkTransformer rewrites relative links to other source documents
// so they point at the rendered page: "post.md#intro" becomes
// "post.html#intro". Absolute URLs are left alone.
type sourceLinkTransformer struct{}

func newSourceLinkTransformer() parser.ASTTransformer {
	return &sourceLinkTransformer{}
}

func (t *sourceLinkTransformer) Transform(node *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		link.Destination = rewriteSourceLink(link.Destination)
		return ast.WalkContinue, nil
	})
}

func rewriteSourceLink(dest []byte) []byte {
	if bytes.Contains(dest, []byte("://")) || bytes.HasPrefix(dest, []byte("mailto:")) {
		return dest
	}
	target, fragment := dest, []byte(nil)
	if i := bytes.IndexByte(dest, '#'); i >= 0 {
		target, fragment = dest[:i], dest[i:]
	}
	for _, suffix := range sourceLinkSuffixes {
		if bytes.HasSuffix(target, suffix) {
			out := make([]byte, 0, len(dest)+2)
			out = append(out, bytes.TrimSuffix(target, suffix)...)
			out = append(out, ".html"...)
			return append(out, fragment...)
		}
	}
	return dest
}
