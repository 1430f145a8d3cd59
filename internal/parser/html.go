package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/novelsplit/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files, typically chapter pages saved from a novel
// site. Novel text on those pages is usually loose text separated by <br>, so
// line breaks are preserved rather than collapsed into paragraphs.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tree := &doctree.DocTree{Title: trimExt(filename)}
	if title := findTitle(doc); title != "" {
		tree.Title = title
	}

	b := newSectionBuilder("\n\n")
	var inline strings.Builder
	flushInline := func() {
		b.block(tidy(inline.String()))
		inline.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			inline.WriteString(collapseSpace(n.Data))
			return
		case html.ElementNode:
			if level := headingLevel(n.Data); level > 0 {
				flushInline()
				b.heading(level, textContent(n))
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "aside", "form", "noscript", "head":
				return
			case "br":
				inline.WriteString("\n")
				return
			case "p", "li", "td", "blockquote", "pre":
				flushInline()
				b.block(textContent(n))
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			flushInline()
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	flushInline()

	tree.Children = b.children()
	return tree, nil
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// textContent renders an element's text with <br> as a line break.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(collapseSpace(n.Data))
		case n.Type == html.ElementNode && n.Data == "br":
			buf.WriteString("\n")
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return tidy(buf.String())
}

// collapseSpace applies HTML whitespace rules to a text node: any run of
// whitespace, source newlines included, becomes a single space.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" {
			return " "
		}
		return ""
	}
	out := strings.Join(fields, " ")
	if strings.TrimLeftFunc(s[:1], isASCIISpace) == "" {
		out = " " + out
	}
	if strings.TrimRightFunc(s[len(s)-1:], isASCIISpace) == "" {
		out += " "
	}
	return out
}

func isASCIISpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
