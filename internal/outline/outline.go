// Package outline draws an ast tree as a terminal outline.
package outline

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/starford/mindmark/internal/ast"
)

// Options controls rendering.
type Options struct {
	// Title labels a document root. Empty means "Document".
	Title string
	// Notes appends the first line of each node's notes.
	Notes bool
	// Styled enables colours and bold headings.
	Styled bool
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	listStyle    = lipgloss.NewStyle()
	notesStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
	enumStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
)

// Render returns the outline of root. A nil root renders as "".
func Render(root *ast.Node, opts Options) string {
	if root == nil {
		return ""
	}
	t := build(root, opts)
	if opts.Styled {
		t.EnumeratorStyle(enumStyle)
	}
	return t.String()
}

func build(n *ast.Node, opts Options) *tree.Tree {
	t := tree.Root(label(n, opts)).Enumerator(tree.RoundedEnumerator)
	for _, c := range n.Children {
		if len(c.Children) == 0 {
			t.Child(label(c, opts))
			continue
		}
		t.Child(build(c, opts))
	}
	return t
}

func label(n *ast.Node, opts Options) string {
	var s string
	style := listStyle
	switch n.Kind {
	case ast.KindDocument:
		s = opts.Title
		if s == "" {
			s = "Document"
		}
		style = headingStyle
	case ast.KindHeading, ast.KindTitle:
		level := min(max(n.Level, 1), ast.MaxHeadingLevel)
		s = strings.Repeat("#", level) + " " + n.Name
		style = headingStyle
	case ast.KindList:
		if n.Ordered {
			s = "1. " + n.Name
		} else {
			s = "- " + n.Name
		}
	default:
		s = n.Name
	}
	if opts.Styled {
		s = style.Render(s)
	}

	if opts.Notes && n.Notes != "" {
		first, _, _ := strings.Cut(n.Notes, "\n")
		note := "(" + strings.TrimSpace(first) + ")"
		if opts.Styled {
			note = notesStyle.Render(note)
		}
		s += " " + note
	}
	return s
}
