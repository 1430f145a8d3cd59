package parser

import (
	"path/filepath"
	"strings"

	"github.com/dgallion1/novelsplit/internal/doctree"
)

// sectionBuilder nests heading nodes by level and collects the text blocks
// between them into the innermost open section.
type sectionBuilder struct {
	root  *doctree.DocNode
	stack []sectionEntry
	text  strings.Builder
	sep   string
}

type sectionEntry struct {
	node  *doctree.DocNode
	level int
}

func newSectionBuilder(sep string) *sectionBuilder {
	root := &doctree.DocNode{}
	return &sectionBuilder{root: root, stack: []sectionEntry{{node: root}}, sep: sep}
}

func (b *sectionBuilder) heading(level int, title string) {
	b.flush()
	n := &doctree.DocNode{Title: title}
	// Pop until the top is a strictly shallower section.
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, sectionEntry{node: n, level: level})
}

func (b *sectionBuilder) block(t string) {
	if t == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString(b.sep)
	}
	b.text.WriteString(t)
}

func (b *sectionBuilder) flush() {
	t := strings.TrimSpace(b.text.String())
	if t != "" {
		top := b.stack[len(b.stack)-1].node
		if top.Text != "" {
			top.Text += b.sep + t
		} else {
			top.Text = t
		}
	}
	b.text.Reset()
}

// children returns the top-level nodes. Text seen before the first heading
// becomes a leading untitled node instead of being lost.
func (b *sectionBuilder) children() []*doctree.DocNode {
	b.flush()
	var out []*doctree.DocNode
	if b.root.Text != "" {
		out = append(out, &doctree.DocNode{Text: b.root.Text})
	}
	return append(out, b.root.Children...)
}

// tidy trims every line and squeezes runs of blank lines down to one.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := true
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
