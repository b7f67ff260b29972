// Package markdown renders blog post bodies to HTML as templ components.
package markdown

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Raw HTML in the source is dropped; goldmark renders safely by default.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
		parser.WithASTTransformers(util.Prioritized(linkTransformer{}, 100)),
	),
)

// Markdown returns a templ.Component that renders src as HTML.
func Markdown(src string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Render(w, src)
	})
}

// Render writes the HTML form of src to w.
func Render(w io.Writer, src string) error {
	return md.Convert([]byte(src), w)
}

// HTML returns the HTML form of src, or "" if conversion fails.
func HTML(src string) string {
	var buf bytes.Buffer
	if err := Render(&buf, src); err != nil {
		return ""
	}
	return buf.String()
}

// linkTransformer opens external links in a new tab and lazy-loads every
// image after the first.
type linkTransformer struct{}

func (linkTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	images := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Link:
			if isExternal(string(n.Destination)) {
				n.SetAttributeString("target", []byte("_blank"))
				n.SetAttributeString("rel", []byte("noopener noreferrer"))
			}
		case *ast.Image:
			if images > 0 {
				n.SetAttributeString("loading", []byte("lazy"))
			}
			images++
		}
		return ast.WalkContinue, nil
	})
}

func isExternal(dest string) bool {
	return strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://")
}
