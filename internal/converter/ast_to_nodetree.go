package converter

import (
	"github.com/starford/mindmark/internal/ast"
)

// Topics used for synthesized nodes.
const (
	PlaceholderTopic = "New Document"
	DocumentTopic    = "Document"
)

// ASTToNodeTree projects an ast tree onto the renderer's NodeTree format,
// adding the breadcrumb and sibling metadata the assistant features read.
type ASTToNodeTree struct {
	cfg Config
}

// NewASTToNodeTree creates the NodeTree projector.
func NewASTToNodeTree(cfg Config) (*ASTToNodeTree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ASTToNodeTree{cfg: cfg}, nil
}

// Convert builds a node_tree envelope. A document root with no children
// yields a placeholder node; with one child the child becomes the root; with
// several a visible "Document" root holds them.
func (c *ASTToNodeTree) Convert(root *ast.Node) *NodeTree {
	out := &NodeTree{Meta: c.cfg.Meta, Format: FormatNodeTree}
	if root == nil {
		return out
	}
	ids := c.cfg.newAllocator()
	root.Traverse(func(n *ast.Node, _ int) { ids.reserve(n.ID) })

	if root.Kind != ast.KindDocument {
		out.Root = c.convertNode(root, nil, "", nil, ids)
		return out
	}

	switch len(root.Children) {
	case 0:
		out.Root = &TreeNode{
			ID:    ids.assign(root.ID),
			Topic: PlaceholderTopic,
			Data: &NodeData{
				Type:         string(ast.KindDocument),
				FullPath:     PlaceholderTopic,
				SiblingNodes: []string{},
			},
			Children: []*TreeNode{},
		}
	case 1:
		out.Root = c.convertNode(root.Children[0], nil, "", nil, ids)
	default:
		id := ids.assign(root.ID)
		doc := &TreeNode{
			ID:    id,
			Topic: DocumentTopic,
			Data: &NodeData{
				Type:         string(ast.KindDocument),
				FullPath:     DocumentTopic,
				SiblingNodes: []string{},
			},
			Children: make([]*TreeNode, 0, len(root.Children)),
		}
		for _, child := range root.Children {
			doc.Children = append(doc.Children, c.convertNode(child, &id, DocumentTopic, root.Children, ids))
		}
		out.Root = doc
	}
	return out
}

// convertNode converts node and its subtree. siblings is the child list of
// node's parent (node included), nil at the root.
func (c *ASTToNodeTree) convertNode(node *ast.Node, parentID *string, parentPath string, siblings []*ast.Node, ids *idAllocator) *TreeNode {
	topic := topicOf(node)
	fullPath := topic
	if parentPath != "" {
		fullPath = parentPath + "/" + topic
	}

	sibNames := make([]string, 0, len(siblings))
	for _, s := range siblings {
		if s != node {
			sibNames = append(sibNames, topicOf(s))
		}
	}

	data := &NodeData{
		Type:         string(node.Kind),
		Raw:          node.Raw,
		FullPath:     fullPath,
		SiblingNodes: sibNames,
	}
	if node.Level > 0 {
		data.Level = intPtr(node.Level)
	}
	if node.Kind == ast.KindList {
		data.Ordered = boolPtr(node.Ordered)
		data.Marker = strPtr(markerOf(node))
		data.Indent = intPtr(node.Indent)
	}

	id := ids.assign(node.ID)
	tn := &TreeNode{
		ID:       id,
		Topic:    topic,
		ParentID: parentID,
		Data:     data,
		Notes:    node.Notes,
		Children: make([]*TreeNode, 0, len(node.Children)),
	}
	for _, child := range node.Children {
		tn.Children = append(tn.Children, c.convertNode(child, &id, fullPath, node.Children, ids))
	}
	return tn
}

// topicOf returns the visible text of a node.
func topicOf(n *ast.Node) string {
	switch n.Kind {
	case ast.KindHeading, ast.KindList, ast.KindTitle:
		return n.Name
	default:
		switch {
		case n.Name != "":
			return n.Name
		case n.Kind != "":
			return string(n.Kind)
		default:
			return "Node"
		}
	}
}

func markerOf(n *ast.Node) string {
	if n.Marker != "" {
		return n.Marker
	}
	if n.Ordered {
		return "1."
	}
	return "-"
}

// TreeStats summarises a NodeTree.
type TreeStats struct {
	TotalNodes int            `json:"totalNodes"`
	Types      map[string]int `json:"types"`
	MaxDepth   int            `json:"maxDepth"`
}

// GetStats counts nodes per data.type and the deepest level of the tree.
// Nodes without a type are counted as "unknown".
func (c *ASTToNodeTree) GetStats(tree *NodeTree) TreeStats {
	st := TreeStats{Types: make(map[string]int)}
	if tree == nil {
		return st
	}
	tree.Walk(func(n *TreeNode, depth int) {
		st.TotalNodes++
		typ := "unknown"
		if n.Data != nil && n.Data.Type != "" {
			typ = n.Data.Type
		}
		st.Types[typ]++
		if depth > st.MaxDepth {
			st.MaxDepth = depth
		}
	})
	return st
}
