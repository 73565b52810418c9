package converter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/mindmark/internal/apperr"
)

// NodeTree formats.
const (
	FormatNodeTree  = "node_tree"
	FormatNodeArray = "node_array"
)

// Meta describes the producer of a NodeTree.
type Meta struct {
	Name    string `json:"name" yaml:"name"`
	Author  string `json:"author" yaml:"author"`
	Version string `json:"version" yaml:"version"`
}

// NodeTree is the envelope exchanged with the mind-map renderer. With
// FormatNodeTree, Root holds a nested tree; with FormatNodeArray, Nodes holds a
// flat list linked through ParentID. A hand-edited document may also carry a
// nested array under node_tree, in which case Nodes is set.
type NodeTree struct {
	Meta   Meta
	Format string
	Root   *TreeNode
	Nodes  []*TreeNode
}

// TreeNode is one node of a NodeTree. Type, Level, Ordered and Marker at the
// node's top level are tolerated on input only; the converters write them
// under Data.
type TreeNode struct {
	ID       string      `json:"id"`
	Topic    string      `json:"topic"`
	ParentID *string     `json:"parentid"`
	Data     *NodeData   `json:"data,omitempty"`
	Notes    string      `json:"notes,omitempty"`
	Children []*TreeNode `json:"children"`

	Type    string  `json:"type,omitempty"`
	Level   *int    `json:"level,omitempty"`
	Ordered *bool   `json:"ordered,omitempty"`
	Marker  *string `json:"marker,omitempty"`
}

// NodeData carries the structural metadata of a TreeNode.
type NodeData struct {
	Type         string   `json:"type,omitempty"`
	Level        *int     `json:"level"`
	Raw          string   `json:"raw"`
	FullPath     string   `json:"fullPath"`
	SiblingNodes []string `json:"siblingNodes"`
	Ordered      *bool    `json:"ordered,omitempty"`
	Marker       *string  `json:"marker,omitempty"`
	Indent       *int     `json:"indent,omitempty"`

	// Inner is a nested data object some editors wrap metadata in.
	Inner *NodeData `json:"data,omitempty"`
}

type nodeTreeJSON struct {
	Meta   Meta            `json:"meta"`
	Format string          `json:"format"`
	Data   json.RawMessage `json:"data"`
}

// MarshalJSON writes the {meta, format, data} envelope.
func (t NodeTree) MarshalJSON() ([]byte, error) {
	var data any
	switch {
	case t.Root != nil:
		data = t.Root
	case t.Nodes != nil:
		data = t.Nodes
	default:
		data = nil
	}
	return json.Marshal(struct {
		Meta   Meta   `json:"meta"`
		Format string `json:"format"`
		Data   any    `json:"data"`
	}{t.Meta, t.Format, data})
}

// UnmarshalJSON reads the envelope; data may be an object or an array.
func (t *NodeTree) UnmarshalJSON(b []byte) error {
	var raw nodeTreeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.Meta = raw.Meta
	t.Format = raw.Format
	t.Root, t.Nodes = nil, nil

	data := bytes.TrimSpace(raw.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '{':
		var n TreeNode
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		t.Root = &n
	case '[':
		var ns []*TreeNode
		if err := json.Unmarshal(data, &ns); err != nil {
			return err
		}
		t.Nodes = ns
	default:
		return fmt.Errorf("node tree data must be an object or array: %w", apperr.ErrInvalidInput)
	}
	return nil
}

// ParseNodeTree decodes a NodeTree document. Anything that is not a JSON
// object at the top level is rejected with apperr.ErrInvalidInput.
func ParseNodeTree(b []byte) (*NodeTree, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("node tree must be a JSON object: %w", apperr.ErrInvalidInput)
	}
	var t NodeTree
	if err := json.Unmarshal(trimmed, &t); err != nil {
		return nil, fmt.Errorf("decode node tree: %v: %w", err, apperr.ErrInvalidInput)
	}
	return &t, nil
}

// Walk visits every node of the tree in pre-order with its depth (roots are 0).
func (t *NodeTree) Walk(fn func(n *TreeNode, depth int)) {
	type frame struct {
		node  *TreeNode
		depth int
	}
	var stack []frame
	roots := t.Nodes
	if t.Root != nil {
		roots = []*TreeNode{t.Root}
	}
	for i := len(roots) - 1; i >= 0; i-- {
		if roots[i] != nil {
			stack = append(stack, frame{roots[i], 0})
		}
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(f.node, f.depth)
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			if c := f.node.Children[i]; c != nil {
				stack = append(stack, frame{c, f.depth + 1})
			}
		}
	}
}

// Empty reports whether the tree carries no nodes.
func (t *NodeTree) Empty() bool {
	return t == nil || (t.Root == nil && len(t.Nodes) == 0)
}

// hints is the normalised view of the loosely typed structural fields of a
// TreeNode. It is computed once per node so inference never re-checks the
// several places an editor may have put them.
type hints struct {
	typ     string
	level   *int
	ordered *bool
	marker  *string
	indent  *int
}

func (h hints) headingLike() bool {
	return h.typ == "heading" || h.typ == "title" || (h.typ == "" && h.level != nil)
}

func (h hints) listLike() bool {
	return h.typ == "list" || (h.typ == "" && (h.ordered != nil || h.marker != nil))
}

// normalize collects structural hints from data, then the node itself, then
// any nested data object, in that order of precedence.
func normalize(n *TreeNode) hints {
	h := hints{
		typ:     n.Type,
		level:   n.Level,
		ordered: n.Ordered,
		marker:  n.Marker,
	}
	if d := n.Data; d != nil {
		if d.Type != "" {
			h.typ = d.Type
		}
		if d.Level != nil {
			h.level = d.Level
		}
		if d.Ordered != nil {
			h.ordered = d.Ordered
		}
		if d.Marker != nil {
			h.marker = d.Marker
		}
		h.indent = d.Indent

		if in := d.Inner; in != nil {
			if h.typ == "" {
				h.typ = in.Type
			}
			if h.level == nil {
				h.level = in.Level
			}
			if h.ordered == nil {
				h.ordered = in.Ordered
			}
			if h.marker == nil {
				h.marker = in.Marker
			}
			if h.indent == nil {
				h.indent = in.Indent
			}
		}
	}
	return h
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
