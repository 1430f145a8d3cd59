package parser

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"novel.txt", "*parser.TextParser", false},
		{"NOVEL.TXT", "*parser.TextParser", false},
		{"novel.markdown", "*parser.MarkdownParser", false},
		{"page.xhtml", "*parser.HTMLParser", false},
		{"scan.pdf", "*parser.PDFParser", false},
		{"draft.docx", "*parser.DOCXParser", false},
		{"table.csv", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.filename)
			}
			if IsSupportedExtension(tt.filename) {
				t.Errorf("%s: should not be a supported extension", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.filename, err)
		}
		if got := typeName(p); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.filename, tt.want, got)
		}
		if !IsSupportedExtension(tt.filename) {
			t.Errorf("%s: expected supported extension", tt.filename)
		}
	}
}

func TestReadText(t *testing.T) {
	text, tree, err := ReadText(strings.NewReader("1화\n본문\n"), "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "1화\n본문\n" {
		t.Errorf("expected raw text, got %q", text)
	}
	if tree.Title != "a" {
		t.Errorf("expected title %q, got %q", "a", tree.Title)
	}

	if _, _, err := ReadText(strings.NewReader("x"), "a.csv"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestPagesTree(t *testing.T) {
	tree := pagesTree("scan", "1화 시작\n본문\f  \f계속되는 본문\n2화\n끝\f")
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 non-blank pages, got %d", len(tree.Children))
	}
	if tree.Children[0].Title != "" {
		t.Errorf("pages must not carry headings, got %q", tree.Children[0].Title)
	}
	if tree.Children[1].Page != 3 {
		t.Errorf("expected page 3, got %d", tree.Children[1].Page)
	}
	want := "1화 시작\n본문\n\n계속되는 본문\n2화\n끝"
	if got := tree.Text(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestExtensionsSorted(t *testing.T) {
	exts := Extensions()
	for i := 1; i < len(exts); i++ {
		if exts[i-1] > exts[i] {
			t.Fatalf("extensions not sorted: %v", exts)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *TextParser:
		return "*parser.TextParser"
	case *MarkdownParser:
		return "*parser.MarkdownParser"
	case *HTMLParser:
		return "*parser.HTMLParser"
	case *PDFParser:
		return "*parser.PDFParser"
	case *DOCXParser:
		return "*parser.DOCXParser"
	}
	return "unknown"
}
