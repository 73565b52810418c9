package outline

import (
	"strings"
	"testing"

	"github.com/starford/mindmark/internal/ast"
)

func sample() *ast.Node {
	root := &ast.Node{Kind: ast.KindHeading, Name: "Root", Level: 1, Notes: "about\nmore"}
	child := root.AddChild(&ast.Node{Kind: ast.KindHeading, Name: "Child1", Level: 2})
	child.AddChild(&ast.Node{Kind: ast.KindList, Name: "item1"})
	child.AddChild(&ast.Node{Kind: ast.KindList, Name: "item2", Ordered: true})
	root.AddChild(&ast.Node{Kind: ast.KindHeading, Name: "Child2", Level: 2})
	return root
}

// splitLines splits rendered output, dropping the padding lipgloss adds.
func splitLines(out string) []string {
	ls := strings.Split(out, "\n")
	for i, l := range ls {
		ls[i] = strings.TrimRight(l, " ")
	}
	return ls
}

func TestRender_Order(t *testing.T) {
	out := Render(sample(), Options{})
	lines := splitLines(out)
	want := []string{"# Root", "## Child1", "- item1", "1. item2", "## Child2"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i, w := range want {
		if !strings.HasSuffix(lines[i], w) {
			t.Errorf("line %d = %q, want suffix %q", i, lines[i], w)
		}
	}
	if lines[0] != "# Root" {
		t.Errorf("root line = %q", lines[0])
	}
	if strings.Contains(out, "about") {
		t.Error("notes rendered without Notes option")
	}
}

func TestRender_Nesting(t *testing.T) {
	lines := splitLines(Render(sample(), Options{}))
	indent := func(s string) int {
		return strings.IndexFunc(s, func(r rune) bool {
			return r == '#' || r == '-' || r == '1'
		})
	}
	if !(indent(lines[1]) < indent(lines[2])) {
		t.Errorf("list items not nested under Child1:\n%s", strings.Join(lines, "\n"))
	}
	if indent(lines[1]) != indent(lines[4]) {
		t.Errorf("Child1 and Child2 at different depths:\n%s", strings.Join(lines, "\n"))
	}
}

func TestRender_NotesAndDocument(t *testing.T) {
	doc := &ast.Node{Kind: ast.KindDocument}
	doc.AddChild(sample())
	out := Render(doc, Options{Notes: true, Title: "plan.md"})
	if splitLines(out)[0] != "plan.md" {
		t.Errorf("document label missing:\n%s", out)
	}
	if !strings.Contains(out, "# Root (about)") {
		t.Errorf("first notes line missing:\n%s", out)
	}
	if strings.Contains(out, "more") {
		t.Errorf("only the first notes line should show:\n%s", out)
	}
}

func TestRender_Nil(t *testing.T) {
	if got := Render(nil, Options{}); got != "" {
		t.Errorf("got %q", got)
	}
}
