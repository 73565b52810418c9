package converter

import (
	"github.com/starford/mindmark/internal/ast"
)

// NodeTreeToAST rebuilds ast trees from a NodeTree. Trees edited in the
// renderer often lose their type metadata, so node kinds are inferred from
// the node's own fields, its siblings, and finally its parent.
type NodeTreeToAST struct {
	cfg Config
}

// NewNodeTreeToAST creates the NodeTree importer.
func NewNodeTreeToAST(cfg Config) (*NodeTreeToAST, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NodeTreeToAST{cfg: cfg}, nil
}

// parentInfo is what inference needs to know about the converted parent.
type parentInfo struct {
	kind   ast.Kind
	level  int
	indent int
	depth  int
}

// rootParent stands in for the missing parent of top-level nodes.
var rootParent = parentInfo{kind: ast.KindDocument, depth: -1}

// Convert returns the reconstructed roots, or nil when the tree carries no
// data. No synthetic wrapper is added: several roots come back as several
// nodes.
func (c *NodeTreeToAST) Convert(tree *NodeTree) []*ast.Node {
	roots, _ := c.convert(tree)
	return roots
}

// convert also returns the id allocator it used, so a wrapper added by the
// caller gets an id distinct from every node in the tree.
func (c *NodeTreeToAST) convert(tree *NodeTree) ([]*ast.Node, *idAllocator) {
	if tree.Empty() {
		return nil, nil
	}

	var roots []*TreeNode
	switch {
	case tree.Root != nil:
		roots = []*TreeNode{tree.Root}
	default:
		roots = ConvertNodeArrayToTree(tree.Nodes)
	}
	if len(roots) == 0 {
		return nil, nil
	}

	ids := c.cfg.newAllocator()
	tree.Walk(func(n *TreeNode, _ int) { ids.reserve(n.ID) })
	out := make([]*ast.Node, 0, len(roots))
	for _, r := range roots {
		out = append(out, c.convertNode(r, roots, rootParent, ids))
	}
	return out, ids
}

// ConvertOne is Convert for callers that want a single root: several roots
// are wrapped in a document node.
func (c *NodeTreeToAST) ConvertOne(tree *NodeTree) *ast.Node {
	roots, ids := c.convert(tree)
	switch len(roots) {
	case 0:
		return nil
	case 1:
		return roots[0]
	}
	doc := &ast.Node{ID: ids.assign(""), Kind: ast.KindDocument}
	for _, r := range roots {
		doc.AddChild(r)
	}
	doc.RecomputeDepths(0)
	return doc
}

func (c *NodeTreeToAST) convertNode(raw *TreeNode, siblings []*TreeNode, parent parentInfo, ids *idAllocator) *ast.Node {
	node := &ast.Node{
		ID:    ids.assign(raw.ID),
		Name:  raw.Topic,
		Notes: raw.Notes,
		Depth: parent.depth + 1,
	}
	if d := raw.Data; d != nil {
		node.Raw = d.Raw
		node.FullPath = d.FullPath
		if len(d.SiblingNodes) > 0 {
			node.SiblingNodes = append([]string(nil), d.SiblingNodes...)
		}
	}

	h := normalize(raw)
	inferNodeType(node, h, siblings, raw, parent)
	node.Indent = indentFor(node, h, parent)

	self := parentInfo{kind: node.Kind, level: node.Level, indent: node.Indent, depth: node.Depth}
	if node.Depth >= c.cfg.MaxDepth {
		for _, d := range flatten(raw.Children) {
			node.AddChild(c.convertNode(&TreeNode{
				ID: d.ID, Topic: d.Topic, Data: d.Data, Notes: d.Notes,
				Type: d.Type, Level: d.Level, Ordered: d.Ordered, Marker: d.Marker,
			}, nil, self, ids))
		}
		return node
	}
	for _, child := range raw.Children {
		if child == nil {
			continue
		}
		node.AddChild(c.convertNode(child, raw.Children, self, ids))
	}
	return node
}

// inferNodeType sets Kind, Level, Ordered and Marker on node, in priority
// order: an explicit type, the node's own heading or list fields, the first
// informative sibling, then the parent.
func inferNodeType(node *ast.Node, h hints, siblings []*TreeNode, self *TreeNode, parent parentInfo) {
	switch {
	case h.typ != "":
		node.Kind = ast.Kind(h.typ)
		switch node.Kind {
		case ast.KindHeading, ast.KindTitle:
			node.Level = headingLevel(h.level, parent)
		case ast.KindList:
			setList(node, h.ordered, h.marker)
		}
		return

	case h.level != nil:
		node.Kind = ast.KindHeading
		node.Level = clampLevel(*h.level)
		return

	case h.ordered != nil || h.marker != nil:
		node.Kind = ast.KindList
		setList(node, h.ordered, h.marker)
		return
	}

	for _, s := range siblings {
		if s == nil || s == self {
			continue
		}
		if sh := normalize(s); sh.headingLike() {
			node.Kind = ast.KindHeading
			node.Level = headingLevel(sh.level, parent)
			return
		}
	}
	for _, s := range siblings {
		if s == nil || s == self {
			continue
		}
		if sh := normalize(s); sh.listLike() {
			node.Kind = ast.KindList
			setList(node, sh.ordered, sh.marker)
			return
		}
	}

	if parent.kind == ast.KindHeading || parent.kind == ast.KindTitle {
		if parent.level >= ast.MaxHeadingLevel {
			node.Kind = ast.KindList
			setList(node, nil, nil)
			return
		}
		node.Kind = ast.KindHeading
		node.Level = clampLevel(parent.level + 1)
		return
	}
	node.Kind = ast.KindList
	setList(node, nil, nil)
}

// headingLevel uses an explicit level if given, else one below a heading
// parent, else 1.
func headingLevel(level *int, parent parentInfo) int {
	if level != nil {
		return clampLevel(*level)
	}
	if parent.kind == ast.KindHeading || parent.kind == ast.KindTitle {
		return clampLevel(parent.level + 1)
	}
	return 1
}

func clampLevel(l int) int {
	return min(max(l, 1), ast.MaxHeadingLevel)
}

func setList(node *ast.Node, ordered *bool, marker *string) {
	node.Ordered = ordered != nil && *ordered
	switch {
	case marker != nil && *marker != "":
		node.Marker = *marker
	case node.Ordered:
		node.Marker = "1."
	default:
		node.Marker = "-"
	}
}

// indentFor prefers a stored indent; otherwise list items start at 0 under a
// heading or document and step by two under another list item. Other nodes
// inherit the parent's indent.
func indentFor(node *ast.Node, h hints, parent parentInfo) int {
	if node.Kind != ast.KindList {
		return max(parent.indent, 0)
	}
	if h.indent != nil {
		return *h.indent
	}
	if parent.kind == ast.KindList {
		return parent.indent + listIndentStep
	}
	return 0
}

// flatten lists every node under roots in pre-order.
func flatten(roots []*TreeNode) []*TreeNode {
	var out []*TreeNode
	stack := make([]*TreeNode, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// ConvertNodeArrayToTree links a flat node list through parentid. Nodes whose
// parent cannot be resolved, or that sit on a parent cycle, become roots. The
// input nodes are not modified.
func ConvertNodeArrayToTree(nodes []*TreeNode) []*TreeNode {
	copies := make([]*TreeNode, 0, len(nodes))
	byID := make(map[string]*TreeNode, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.Children = append([]*TreeNode(nil), n.Children...)
		copies = append(copies, &cp)
		if cp.ID != "" {
			if _, dup := byID[cp.ID]; !dup {
				byID[cp.ID] = &cp
			}
		}
	}

	parentOf := func(n *TreeNode) *TreeNode {
		if n.ParentID == nil || *n.ParentID == n.ID {
			return nil
		}
		return byID[*n.ParentID]
	}
	// inCycle reports whether following parents from n leads back to n.
	inCycle := func(n *TreeNode) bool {
		seen := map[*TreeNode]struct{}{}
		for p := parentOf(n); p != nil; p = parentOf(p) {
			if p == n {
				return true
			}
			if _, ok := seen[p]; ok {
				return false
			}
			seen[p] = struct{}{}
		}
		return false
	}

	var roots []*TreeNode
	for _, n := range copies {
		p := parentOf(n)
		if p == nil || inCycle(n) {
			roots = append(roots, n)
			continue
		}
		p.Children = append(p.Children, n)
	}
	return roots
}
