package extract

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/omisdami/docrag/internal/document"
)

// MarkdownExtractor handles Markdown files using goldmark. ATX headings open
// sections at their level; everything else accumulates as section body text.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, &ExtractionError{File: filename, Err: err}
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	var b sectionBuilder
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := string(node.Text(src))
			b.StartSection(title, node.Level, 1)
		default:
			if t := markdownText(n, src); t != "" {
				b.AddText(t, 1)
			}
		}
	}

	return &document.Document{
		Metadata: fileMetadata(filename, "markdown", 1),
		Sections: b.Sections(),
	}, nil
}

// markdownText gets the text content of a goldmark AST node. Raw blocks
// (code fences) carry their content in Lines; parsed blocks carry it in
// inline children.
func markdownText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		part := markdownText(c, src)
		if part == "" {
			continue
		}
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(part)
	}
	return strings.TrimSpace(buf.String())
}
