package mapservice

import (
	"context"
	"fmt"

	"github.com/starford/mindmark/internal/apperr"
	"github.com/starford/mindmark/internal/converter"
)

// NodeRef identifies a neighbouring node.
type NodeRef struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
}

// NodeContext is what an assistant needs to reason about one node: where it
// sits in the map, what surrounds it, and its subtree as Markdown.
type NodeContext struct {
	MapPath      string    `json:"map_path"`
	MapTitle     string    `json:"map_title"`
	NodeID       string    `json:"node_id"`
	Topic        string    `json:"topic"`
	Type         string    `json:"type"`
	Level        int       `json:"level,omitempty"`
	FullPath     string    `json:"fullPath"`
	SiblingNodes []string  `json:"siblingNodes"`
	Notes        string    `json:"notes,omitempty"`
	Parent       *NodeRef  `json:"parent,omitempty"`
	Children     []NodeRef `json:"children"`
	Markdown     string    `json:"markdown"`
}

// NodeContext looks up nodeID in the map's NodeTree projection. Node ids
// are assigned per conversion in document order, so they stay valid until
// the structure above the node changes.
func (s *Service) NodeContext(_ context.Context, p, nodeID string) (*NodeContext, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("node id is required: %w", apperr.ErrInvalidInput)
	}
	p, data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	tree, err := s.treeOf(data)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*converter.TreeNode)
	tree.Walk(func(n *converter.TreeNode, _ int) {
		if _, dup := byID[n.ID]; !dup {
			byID[n.ID] = n
		}
	})
	node, ok := byID[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %q in %s: %w", nodeID, p, apperr.ErrNotFound)
	}

	out := &NodeContext{
		MapPath:      p,
		MapTitle:     tree.Meta.Name,
		NodeID:       node.ID,
		Topic:        node.Topic,
		FullPath:     node.Topic,
		SiblingNodes: []string{},
		Notes:        node.Notes,
		Children:     make([]NodeRef, 0, len(node.Children)),
	}
	if d := node.Data; d != nil {
		out.Type = d.Type
		if d.Level != nil {
			out.Level = *d.Level
		}
		if d.FullPath != "" {
			out.FullPath = d.FullPath
		}
		out.SiblingNodes = nonNilSlice(d.SiblingNodes)
	}
	if node.ParentID != nil {
		if parent, ok := byID[*node.ParentID]; ok {
			out.Parent = &NodeRef{ID: parent.ID, Topic: parent.Topic}
		}
	}
	for _, c := range node.Children {
		out.Children = append(out.Children, NodeRef{ID: c.ID, Topic: c.Topic})
	}

	md, err := s.conv.NodeTreeToMd(&converter.NodeTree{
		Meta:   tree.Meta,
		Format: converter.FormatNodeTree,
		Root:   node,
	})
	if err != nil {
		return nil, err
	}
	out.Markdown = md
	return out, nil
}
