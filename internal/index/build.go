package index

import (
	"time"

	"github.com/starford/mindmark/internal/ast"
	"github.com/starford/mindmark/internal/checksum"
	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/models"
	"github.com/starford/mindmark/internal/parser"
)

// NodeRow is one row of the nodes table.
type NodeRow struct {
	MapPath  string
	ID       string
	ParentID string
	Position int
	Type     string
	Level    int
	Topic    string
	FullPath string
	Notes    string
	Depth    int
}

// Entry is everything the index stores for one map file.
type Entry struct {
	Map   models.MapSummary
	Body  string
	Nodes []NodeRow
}

// BuildEntry parses a map file and projects it to index rows. Node rows
// come from the NodeTree projection so they carry the same ids, breadcrumbs
// and types the renderer sees. Synthetic document nodes are not indexed.
func BuildEntry(conv *converter.Manager, path string, data []byte) (Entry, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return Entry{}, err
	}
	tree, err := conv.MdToNodeTree(res.Body)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		Map: models.MapSummary{
			Path:      path,
			Title:     res.Title,
			Checksum:  checksum.Sum(data),
			Tags:      nonNil(res.Tags),
			UpdatedAt: time.Now().UTC(),
		},
		Body: res.Body,
	}

	pos := 0
	tree.Walk(func(n *converter.TreeNode, depth int) {
		typ := ""
		level := 0
		if n.Data != nil {
			typ = n.Data.Type
			if n.Data.Level != nil {
				level = *n.Data.Level
			}
		}
		if typ == string(ast.KindDocument) {
			return
		}
		parentID := ""
		if n.ParentID != nil {
			parentID = *n.ParentID
		}
		fullPath := n.Topic
		if n.Data != nil && n.Data.FullPath != "" {
			fullPath = n.Data.FullPath
		}
		e.Nodes = append(e.Nodes, NodeRow{
			MapPath:  path,
			ID:       n.ID,
			ParentID: parentID,
			Position: pos,
			Type:     typ,
			Level:    level,
			Topic:    n.Topic,
			FullPath: fullPath,
			Notes:    n.Notes,
			Depth:    depth,
		})
		pos++

		e.Map.Nodes++
		switch ast.Kind(typ) {
		case ast.KindHeading, ast.KindTitle:
			e.Map.Headings++
		case ast.KindList:
			e.Map.Lists++
		}
		e.Map.MaxDepth = max(e.Map.MaxDepth, depth)
	})
	return e, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
