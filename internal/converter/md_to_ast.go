package converter

import (
	"regexp"
	"strings"

	"github.com/starford/mindmark/internal/ast"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	listRe    = regexp.MustCompile(`^(\s*)([-*+]|\d+\.)\s+(.+)$`)
	orderedRe = regexp.MustCompile(`^\d+\.$`)
)

// MarkdownToAST parses the heading/list dialect into an ast tree. It never
// fails: any line that is neither a heading nor a list item becomes notes
// text of the nearest preceding node.
type MarkdownToAST struct {
	cfg Config
}

// NewMarkdownToAST creates the Markdown parser.
func NewMarkdownToAST(cfg Config) (*MarkdownToAST, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MarkdownToAST{cfg: cfg}, nil
}

// frame is one entry of the ancestor stack. level is 0 for non-headings.
type frame struct {
	node   *ast.Node
	level  int
	indent int
	depth  int
}

// Convert parses markdown. If the document has exactly one top-level node,
// that node is returned as the root with depth 0; otherwise the synthetic
// document node is returned.
func (c *MarkdownToAST) Convert(markdown string) *ast.Node {
	ids := c.cfg.newIDs()
	root := &ast.Node{ID: ids(), Kind: ast.KindDocument}
	stack := []frame{{node: root, indent: -1}}

	var (
		last    *ast.Node
		pending []string
	)
	flush := func() {
		if last != nil && len(pending) > 0 {
			last.Notes = strings.TrimSpace(strings.Join(pending, "\n"))
		}
		pending = pending[:0]
	}

	for _, line := range strings.Split(markdown, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			node := &ast.Node{
				ID:    ids(),
				Kind:  ast.KindHeading,
				Name:  strings.TrimSpace(m[2]),
				Level: len(m[1]),
				Raw:   line,
			}
			stack = c.attachHeading(stack, node)
			last = node
			continue
		}
		if m := listRe.FindStringSubmatch(line); m != nil {
			flush()
			node := &ast.Node{
				ID:      ids(),
				Kind:    ast.KindList,
				Name:    strings.TrimSpace(m[3]),
				Marker:  m[2],
				Ordered: orderedRe.MatchString(m[2]),
				Indent:  len(m[1]),
				Raw:     line,
			}
			stack = c.attachList(stack, node)
			last = node
			continue
		}
		if last != nil {
			pending = append(pending, line)
		}
	}
	flush()

	root.RecomputeDepths(0)
	if len(root.Children) == 1 {
		only := root.Children[0]
		only.Detach()
		only.RecomputeDepths(0)
		return only
	}
	return root
}

// attachHeading hangs node under the nearest heading with a smaller level,
// or the root, and leaves that ancestor chain plus node on the stack.
func (c *MarkdownToAST) attachHeading(stack []frame, node *ast.Node) []frame {
	parent := 0
	for i := len(stack) - 1; i > 0; i-- {
		f := stack[i]
		if f.node.Kind == ast.KindHeading && f.level < node.Level {
			parent = i
			break
		}
	}
	stack = stack[:parent+1]
	p := stack[parent]
	p.node.AddChild(node)
	return append(stack, frame{node: node, level: node.Level, indent: -1, depth: p.depth + 1})
}

// attachList hangs node under the list item exactly one indent step
// shallower, falling back to the nearest heading or the root.
func (c *MarkdownToAST) attachList(stack []frame, node *ast.Node) []frame {
	expected := node.Indent - listIndentStep
	parent := -1
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		if f.node.Kind == ast.KindList && f.indent == expected {
			parent = i
			break
		}
	}
	if parent < 0 {
		for i := len(stack) - 1; i >= 0; i-- {
			k := stack[i].node.Kind
			if k == ast.KindHeading || k == ast.KindDocument {
				parent = i
				break
			}
		}
	}
	p := stack[parent]
	for p.depth >= c.cfg.MaxDepth && parent > 0 {
		parent--
		p = stack[parent]
	}
	p.node.AddChild(node)

	for len(stack) > 1 {
		top := stack[len(stack)-1]
		if top.node.Kind != ast.KindList || top.indent < node.Indent {
			break
		}
		stack = stack[:len(stack)-1]
	}
	return append(stack, frame{node: node, indent: node.Indent, depth: p.depth + 1})
}
