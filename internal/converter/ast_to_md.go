package converter

import (
	"strings"

	"github.com/starford/mindmark/internal/ast"
)

// BatchSeparator joins independent documents in ConvertBatch.
const BatchSeparator = "\n\n---\n\n"

// ASTToMarkdown renders an ast tree back to Markdown. Output is canonical,
// not byte-identical to the source: unordered markers become "-" and ordered
// markers "1.".
type ASTToMarkdown struct {
	indentSize int
}

// NewASTToMarkdown creates the Markdown renderer.
func NewASTToMarkdown(cfg Config) (*ASTToMarkdown, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ASTToMarkdown{indentSize: cfg.IndentSize}, nil
}

// SetIndentSize sets the spaces per depth level, floored at 1.
func (c *ASTToMarkdown) SetIndentSize(n int) {
	c.indentSize = max(n, 1)
}

// IndentSize returns the spaces per depth level.
func (c *ASTToMarkdown) IndentSize() int {
	return c.indentSize
}

// Convert renders the tree rooted at node. A nil node renders as "".
func (c *ASTToMarkdown) Convert(node *ast.Node) string {
	if node == nil {
		return ""
	}
	return c.render(node, 0, 0)
}

// ConvertRoots renders sibling roots as the children of an implicit document.
func (c *ASTToMarkdown) ConvertRoots(roots []*ast.Node) string {
	parts := make([]string, 0, len(roots))
	for _, r := range roots {
		if r != nil {
			parts = append(parts, c.render(r, 0, 0))
		}
	}
	return strings.Join(parts, "\n\n")
}

// ConvertBatch renders independent trees separated by a horizontal rule.
func (c *ASTToMarkdown) ConvertBatch(nodes []*ast.Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		parts = append(parts, c.Convert(n))
	}
	return strings.Join(parts, BatchSeparator)
}

// render emits node at the given depth. listLevel counts enclosing list items;
// each level indents by the parser's fixed list step, independent of
// IndentSize, which only shifts notes.
func (c *ASTToMarkdown) render(node *ast.Node, depth, listLevel int) string {
	var b strings.Builder

	switch node.Kind {
	case ast.KindDocument:
		parts := make([]string, 0, len(node.Children))
		for _, child := range node.Children {
			parts = append(parts, c.render(child, depth, 0))
		}
		return strings.Join(parts, "\n\n")

	case ast.KindHeading:
		b.WriteString(headingPrefix(node.Level))
		b.WriteString(node.Name)
		c.writeNotes(&b, node.Notes, depth)
		if len(node.Children) > 0 {
			b.WriteString("\n\n")
			b.WriteString(c.renderChildren(node, depth+1, 0))
		}

	case ast.KindList:
		b.WriteString(strings.Repeat(" ", listLevel*listIndentStep))
		if node.Ordered {
			b.WriteString("1. ")
		} else {
			b.WriteString("- ")
		}
		b.WriteString(node.Name)
		c.writeNotes(&b, node.Notes, depth)
		if len(node.Children) > 0 {
			b.WriteString("\n")
			b.WriteString(c.renderChildren(node, depth+1, listLevel+1))
		}

	case ast.KindTitle:
		b.WriteString(headingPrefix(node.Level))
		b.WriteString(node.Name)

	default:
		b.WriteString(node.Name)
		if node.Notes != "" {
			b.WriteString("\n")
			b.WriteString(node.Notes)
		}
	}
	return b.String()
}

func (c *ASTToMarkdown) renderChildren(node *ast.Node, depth, listLevel int) string {
	parts := make([]string, 0, len(node.Children))
	for _, child := range node.Children {
		parts = append(parts, c.render(child, depth, listLevel))
	}
	return strings.Join(parts, "\n")
}

// writeNotes puts notes on the line after their node. Only the first line is
// indented: the parser trims the notes block as a whole, so this survives a
// reparse unchanged.
func (c *ASTToMarkdown) writeNotes(b *strings.Builder, notes string, depth int) {
	if notes == "" {
		return
	}
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", depth*c.indentSize+2))
	b.WriteString(notes)
}

func headingPrefix(level int) string {
	level = min(max(level, 1), ast.MaxHeadingLevel)
	return strings.Repeat("#", level) + " "
}

// MarkdownStats summarises a rendering.
type MarkdownStats struct {
	TotalNodes int `json:"totalNodes"`
	Headings   int `json:"headings"`
	Lists      int `json:"lists"`
	Lines      int `json:"lines"`
}

// GetStats counts nodes across roots and the lines of their combined rendering.
func (c *ASTToMarkdown) GetStats(roots ...*ast.Node) MarkdownStats {
	var st MarkdownStats
	for _, r := range roots {
		if r == nil {
			continue
		}
		r.Traverse(func(n *ast.Node, _ int) {
			st.TotalNodes++
			switch n.Kind {
			case ast.KindHeading, ast.KindTitle:
				st.Headings++
			case ast.KindList:
				st.Lists++
			}
		})
	}
	if out := c.ConvertBatch(roots); out != "" {
		st.Lines = strings.Count(out, "\n") + 1
	}
	return st
}
