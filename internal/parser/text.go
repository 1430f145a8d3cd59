package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/novelsplit/internal/doctree"
)

// TextParser handles plain text files. The decoded text is kept whole in a
// single node; line structure is what chapter detection works on, so nothing
// is reflowed or split here.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	text, enc, err := DecodeText(src)
	if err != nil {
		return nil, err
	}

	tree := &doctree.DocTree{
		Title:    trimExt(filename),
		Encoding: enc,
	}
	if text != "" {
		tree.Children = []*doctree.DocNode{{Text: text}}
	}
	return tree, nil
}
