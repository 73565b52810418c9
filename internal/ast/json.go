package ast

import (
	"encoding/json"
)

// Snapshot is the plain serialisable form of a Node. Parent holds only the
// parent's id and is advisory: FromSnapshot rewires parents from nesting.
type Snapshot struct {
	ID           string      `json:"id"`
	Type         Kind        `json:"type"`
	Name         string      `json:"name"`
	Notes        string      `json:"notes"`
	Level        *int        `json:"level"`
	Ordered      bool        `json:"ordered"`
	Marker       *string     `json:"marker"`
	Indent       int         `json:"indent"`
	Raw          string      `json:"raw"`
	Depth        int         `json:"depth"`
	FullPath     string      `json:"fullPath,omitempty"`
	SiblingNodes []string    `json:"siblingNodes,omitempty"`
	Parent       *string     `json:"parent"`
	Children     []*Snapshot `json:"children"`
}

// Snapshot returns a cycle-free copy of the tree rooted at n.
func (n *Node) Snapshot() *Snapshot {
	root := snapshotOf(n)
	type pair struct {
		node *Node
		snap *Snapshot
	}
	stack := []pair{{n, root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p.snap.Children = make([]*Snapshot, len(p.node.Children))
		for i, c := range p.node.Children {
			cs := snapshotOf(c)
			p.snap.Children[i] = cs
			stack = append(stack, pair{c, cs})
		}
	}
	return root
}

func snapshotOf(n *Node) *Snapshot {
	s := &Snapshot{
		ID:      n.ID,
		Type:    n.Kind,
		Name:    n.Name,
		Notes:   n.Notes,
		Ordered: n.Ordered,
		Indent:  n.Indent,
		Raw:     n.Raw,
		Depth:   n.Depth,
	}
	if n.Level > 0 {
		lvl := n.Level
		s.Level = &lvl
	}
	if n.Marker != "" {
		m := n.Marker
		s.Marker = &m
	}
	if n.FullPath != "" {
		s.FullPath = n.FullPath
	}
	if len(n.SiblingNodes) > 0 {
		s.SiblingNodes = append([]string(nil), n.SiblingNodes...)
	}
	if n.parent != nil {
		pid := n.parent.ID
		s.Parent = &pid
	}
	return s
}

// FromSnapshot rebuilds a tree, wiring parent references from nesting.
// Nodes without an id get a fresh one.
func FromSnapshot(s *Snapshot) *Node {
	if s == nil {
		return nil
	}
	root := nodeOf(s)
	type pair struct {
		snap *Snapshot
		node *Node
	}
	stack := []pair{{s, root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, cs := range p.snap.Children {
			if cs == nil {
				continue
			}
			c := nodeOf(cs)
			p.node.AddChild(c)
			stack = append(stack, pair{cs, c})
		}
	}
	return root
}

func nodeOf(s *Snapshot) *Node {
	n := &Node{
		ID:      s.ID,
		Kind:    s.Type,
		Name:    s.Name,
		Notes:   s.Notes,
		Ordered: s.Ordered,
		Indent:  s.Indent,
		Raw:     s.Raw,
		Depth:   s.Depth,
	}
	if n.ID == "" {
		n.ID = NewID()
	}
	if s.Level != nil {
		n.Level = *s.Level
	}
	if s.Marker != nil {
		n.Marker = *s.Marker
	}
	n.FullPath = s.FullPath
	if len(s.SiblingNodes) > 0 {
		n.SiblingNodes = append([]string(nil), s.SiblingNodes...)
	}
	return n
}

// MarshalJSON encodes the tree rooted at n as its Snapshot.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Snapshot())
}

// UnmarshalJSON decodes a Snapshot into n, replacing its contents.
func (n *Node) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	built := FromSnapshot(&s)
	*n = *built
	for _, c := range n.Children {
		c.parent = n
	}
	return nil
}

// Clone returns an independent deep copy of the tree rooted at n. The copy is
// a root: its parent reference is nil.
func (n *Node) Clone() *Node {
	return FromSnapshot(n.Snapshot())
}
