package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Encoding string     // Source text encoding, when detected
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Text flattens the tree into one string. Headings become lines of their own
// so that chapter markers in structured formats survive as line starts. A tree
// holding a single untitled node returns that node's text unchanged.
func (t *DocTree) Text() string {
	if len(t.Children) == 1 && t.Children[0].Title == "" && len(t.Children[0].Children) == 0 {
		return t.Children[0].Text
	}

	var blocks []string
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if title := strings.TrimSpace(n.Title); title != "" {
				blocks = append(blocks, title)
			}
			if text := strings.TrimSpace(n.Text); text != "" {
				blocks = append(blocks, text)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return strings.Join(blocks, "\n\n")
}
