package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/novelsplit/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings become
// section nodes, so "## 3화 재회" still reads as a chapter line once the tree
// is flattened.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	decoded, enc, err := DecodeText(raw)
	if err != nil {
		return nil, err
	}
	src := []byte(decoded)

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	b := newSectionBuilder("\n\n")
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(node.Level, strings.TrimSpace(string(node.Text(src))))
		case *ast.ThematicBreak:
			// Scene breaks carry no text.
		default:
			b.block(extractText(n, src))
		}
	}

	return &doctree.DocTree{
		Title:    trimExt(filename),
		Encoding: enc,
		Children: b.children(),
	}, nil
}

// extractText gets the text content of a goldmark AST node, keeping line
// breaks inside paragraphs.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	// Leaf blocks such as code blocks only have raw lines. Paragraphs have
	// both lines and inline children; reading both would double the text.
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
