package parser

import (
	"bytes"
	"testing"

	"github.com/fumiama/go-docx"
)

func TestDOCXParser_ParagraphsAreLines(t *testing.T) {
	w := docx.New().WithDefaultTheme()
	for _, line := range []string{"1화 시작", "본문 첫 줄", "", "2화 끝", "마지막 줄"} {
		w.AddParagraph().AddText(line)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}

	p := &DOCXParser{}
	tree, err := p.Parse(&buf, "novel.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "novel" {
		t.Errorf("expected title %q, got %q", "novel", tree.Title)
	}

	want := "1화 시작\n본문 첫 줄\n2화 끝\n마지막 줄"
	if got := tree.Text(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
