// Package ast defines the document tree shared by every converter: headings,
// list items and the free-text notes attached to them.
package ast

import (
	"github.com/google/uuid"
)

// Kind tags the structural role of a Node.
type Kind string

// Node kinds. KindTitle is a legacy heading alias accepted only when emitting Markdown.
const (
	KindDocument Kind = "document"
	KindHeading  Kind = "heading"
	KindList     Kind = "list"
	KindTitle    Kind = "title"
)

// Known reports whether k is one of the recognised kinds.
func (k Kind) Known() bool {
	switch k {
	case KindDocument, KindHeading, KindList, KindTitle:
		return true
	}
	return false
}

// MaxHeadingLevel is the deepest ATX heading.
const MaxHeadingLevel = 6

// Node is one structural unit of a mind-map document.
//
// Level is 0 for non-headings, Marker is empty for non-list nodes. Children are
// owned by the node; the parent pointer is a non-owning back reference kept in
// sync by AddChild and RemoveChild.
type Node struct {
	ID           string
	Kind         Kind
	Name         string
	Notes        string
	Level        int
	Ordered      bool
	Marker       string
	Indent       int
	Raw          string
	Depth        int
	FullPath     string
	SiblingNodes []string
	Children     []*Node

	parent *Node
}

// New returns a node of the given kind with a fresh id.
func New(kind Kind, name string) *Node {
	return &Node{ID: NewID(), Kind: kind, Name: name}
}

// NewID returns a random opaque node id.
func NewID() string {
	return uuid.NewString()
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// AddChild appends child, re-parenting it to n, and returns n for chaining.
func (n *Node) AddChild(child *Node) *Node {
	if child == nil {
		return n
	}
	if child.parent != nil && child.parent != n {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
	return n
}

// RemoveChild detaches child if it is a direct child of n.
func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Detach removes n from its parent, if any.
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// FindChild returns the first direct child matching pred, or nil.
func (n *Node) FindChild(pred func(*Node) bool) *Node {
	for _, c := range n.Children {
		if pred(c) {
			return c
		}
	}
	return nil
}

// IsHeadingLike reports whether the node renders as an ATX heading.
func (n *Node) IsHeadingLike() bool {
	return n.Kind == KindHeading || n.Kind == KindTitle
}

// Traverse visits n and its descendants in pre-order, passing each node's
// depth relative to n (n itself is depth 0). It walks with an explicit stack,
// so arbitrarily deep trees are safe.
func (n *Node) Traverse(fn func(node *Node, depth int)) {
	type frame struct {
		node  *Node
		depth int
	}
	stack := []frame{{n, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(f.node, f.depth)
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

// Stats summarises a tree.
type Stats struct {
	TotalNodes int          `json:"totalNodes"`
	Types      map[Kind]int `json:"types"`
	MaxDepth   int          `json:"maxDepth"`
}

// GetStats counts nodes per kind and the deepest traversal depth.
func (n *Node) GetStats() Stats {
	st := Stats{Types: make(map[Kind]int)}
	n.Traverse(func(node *Node, depth int) {
		st.TotalNodes++
		st.Types[node.Kind]++
		if depth > st.MaxDepth {
			st.MaxDepth = depth
		}
	})
	return st
}

// RecomputeDepths assigns Depth top-down starting at base for n.
func (n *Node) RecomputeDepths(base int) {
	n.Traverse(func(node *Node, depth int) {
		node.Depth = base + depth
	})
}
