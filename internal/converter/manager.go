package converter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/starford/mindmark/internal/apperr"
	"github.com/starford/mindmark/internal/ast"
)

// Format names one of the three document representations.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatAST      Format = "ast"
	FormatTree     Format = "nodetree"
)

// ParseFormat maps a user supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "ast":
		return FormatAST, nil
	case "nodetree", "node_tree", "tree", "json":
		return FormatTree, nil
	}
	return "", fmt.Errorf("unknown format %q: %w", s, apperr.ErrInvalidInput)
}

// Manager is the single entry point for conversions. Sub-converters that
// fail to construct are logged and left nil; calling them returns
// apperr.ErrNotInitialized.
type Manager struct {
	mdToAST   *MarkdownToAST
	astToMD   *ASTToMarkdown
	astToTree *ASTToNodeTree
	treeToAST *NodeTreeToAST
	log       *slog.Logger
}

// NewManager builds every sub-converter from cfg.
func NewManager(cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{log: log}

	var err error
	if m.mdToAST, err = NewMarkdownToAST(cfg); err != nil {
		log.Error("converter init failed", "converter", "markdown_to_ast", "error", err)
	}
	if m.astToMD, err = NewASTToMarkdown(cfg); err != nil {
		log.Error("converter init failed", "converter", "ast_to_markdown", "error", err)
	}
	if m.astToTree, err = NewASTToNodeTree(cfg); err != nil {
		log.Error("converter init failed", "converter", "ast_to_nodetree", "error", err)
	}
	if m.treeToAST, err = NewNodeTreeToAST(cfg); err != nil {
		log.Error("converter init failed", "converter", "nodetree_to_ast", "error", err)
	}
	return m
}

func notInitialized(name string) error {
	return fmt.Errorf("%s converter: %w", name, apperr.ErrNotInitialized)
}

// MdToAst parses Markdown.
func (m *Manager) MdToAst(md string) (*ast.Node, error) {
	if m.mdToAST == nil {
		return nil, notInitialized("markdown_to_ast")
	}
	return m.mdToAST.Convert(md), nil
}

// AstToMd renders an ast tree as Markdown.
func (m *Manager) AstToMd(node *ast.Node) (string, error) {
	if m.astToMD == nil {
		return "", notInitialized("ast_to_markdown")
	}
	return m.astToMD.Convert(node), nil
}

// AstToNodeTree projects an ast tree to the NodeTree format.
func (m *Manager) AstToNodeTree(node *ast.Node) (*NodeTree, error) {
	if m.astToTree == nil {
		return nil, notInitialized("ast_to_nodetree")
	}
	return m.astToTree.Convert(node), nil
}

// NodeTreeToAst rebuilds ast roots from a NodeTree. A tree without data
// yields nil roots and no error.
func (m *Manager) NodeTreeToAst(tree *NodeTree) ([]*ast.Node, error) {
	if m.treeToAST == nil {
		return nil, notInitialized("nodetree_to_ast")
	}
	return m.treeToAST.Convert(tree), nil
}

// MdToNodeTree composes MdToAst and AstToNodeTree.
func (m *Manager) MdToNodeTree(md string) (*NodeTree, error) {
	node, err := m.MdToAst(md)
	if err != nil {
		return nil, err
	}
	return m.AstToNodeTree(node)
}

// NodeTreeToMd composes NodeTreeToAst and AstToMd. Several roots are
// rendered as siblings of one document.
func (m *Manager) NodeTreeToMd(tree *NodeTree) (string, error) {
	roots, err := m.NodeTreeToAst(tree)
	if err != nil {
		return "", err
	}
	if m.astToMD == nil {
		return "", notInitialized("ast_to_markdown")
	}
	return m.astToMD.ConvertRoots(roots), nil
}

// NodeTreeToAstOne is NodeTreeToAst with several roots wrapped in a
// document node. A tree without data yields nil.
func (m *Manager) NodeTreeToAstOne(tree *NodeTree) (*ast.Node, error) {
	if m.treeToAST == nil {
		return nil, notInitialized("nodetree_to_ast")
	}
	return m.treeToAST.ConvertOne(tree), nil
}

// Convert converts data between any two formats. data must have the Go type
// Decode returns for from.
func (m *Manager) Convert(data any, from, to Format) (any, error) {
	switch to {
	case FormatMarkdown, FormatAST, FormatTree:
	default:
		return nil, fmt.Errorf("unknown format %q: %w", to, apperr.ErrInvalidInput)
	}

	switch from {
	case FormatMarkdown:
		md, ok := data.(string)
		if !ok {
			return nil, wrongType(data, from)
		}
		switch to {
		case FormatAST:
			return m.MdToAst(md)
		case FormatTree:
			return m.MdToNodeTree(md)
		}
		return md, nil

	case FormatAST:
		node, ok := data.(*ast.Node)
		if !ok {
			return nil, wrongType(data, from)
		}
		switch to {
		case FormatMarkdown:
			return m.AstToMd(node)
		case FormatTree:
			return m.AstToNodeTree(node)
		}
		return node, nil

	case FormatTree:
		tree, ok := data.(*NodeTree)
		if !ok {
			return nil, wrongType(data, from)
		}
		switch to {
		case FormatMarkdown:
			return m.NodeTreeToMd(tree)
		case FormatAST:
			return m.NodeTreeToAstOne(tree)
		}
		return tree, nil
	}
	return nil, fmt.Errorf("unknown format %q: %w", from, apperr.ErrInvalidInput)
}

// Decode turns raw bytes into the value the other Manager methods expect for
// format: a string, an *ast.Node or a *NodeTree.
func Decode(raw []byte, format Format) (any, error) {
	switch format {
	case FormatMarkdown:
		return string(raw), nil
	case FormatAST:
		var n ast.Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("decode ast: %v: %w", err, apperr.ErrInvalidInput)
		}
		return &n, nil
	case FormatTree:
		return ParseNodeTree(raw)
	}
	return nil, fmt.Errorf("unknown format %q: %w", format, apperr.ErrInvalidInput)
}

func wrongType(data any, format Format) error {
	return fmt.Errorf("%T is not %s data: %w", data, format, apperr.ErrInvalidInput)
}

// Stats summarises a document in any format.
type Stats struct {
	Format     Format         `json:"format"`
	TotalNodes int            `json:"totalNodes"`
	Types      map[string]int `json:"types"`
	MaxDepth   int            `json:"maxDepth"`
	Lines      int            `json:"lines,omitempty"`
}

// GetStats counts nodes by type and measures depth. Markdown is parsed
// first; its line count is reported as well.
func (m *Manager) GetStats(data any, format Format) (Stats, error) {
	switch format {
	case FormatMarkdown:
		md, ok := data.(string)
		if !ok {
			return Stats{}, wrongType(data, format)
		}
		node, err := m.MdToAst(md)
		if err != nil {
			return Stats{}, err
		}
		st := astStats(node)
		st.Format = format
		if md != "" {
			st.Lines = strings.Count(md, "\n") + 1
		}
		return st, nil

	case FormatAST:
		node, ok := data.(*ast.Node)
		if !ok {
			return Stats{}, wrongType(data, format)
		}
		st := astStats(node)
		st.Format = format
		return st, nil

	case FormatTree:
		tree, ok := data.(*NodeTree)
		if !ok {
			return Stats{}, wrongType(data, format)
		}
		if m.astToTree == nil {
			return Stats{}, notInitialized("ast_to_nodetree")
		}
		ts := m.astToTree.GetStats(tree)
		return Stats{Format: format, TotalNodes: ts.TotalNodes, Types: ts.Types, MaxDepth: ts.MaxDepth}, nil
	}
	return Stats{}, fmt.Errorf("unknown format %q: %w", format, apperr.ErrInvalidInput)
}

func astStats(node *ast.Node) Stats {
	st := Stats{Types: make(map[string]int)}
	if node == nil {
		return st
	}
	s := node.GetStats()
	st.TotalNodes = s.TotalNodes
	st.MaxDepth = s.MaxDepth
	for k, v := range s.Types {
		st.Types[string(k)] = v
	}
	return st
}

// Validate checks the structural shape of data. It does not judge content:
// any string is valid Markdown. Shape problems come back as
// validation.Errors keyed by node path; a value of the wrong Go type is
// apperr.ErrInvalidInput.
func (m *Manager) Validate(data any, format Format) error {
	switch format {
	case FormatMarkdown:
		if _, ok := data.(string); !ok {
			return wrongType(data, format)
		}
		return nil
	case FormatAST:
		node, ok := data.(*ast.Node)
		if !ok {
			return wrongType(data, format)
		}
		return validateAST(node)
	case FormatTree:
		tree, ok := data.(*NodeTree)
		if !ok {
			return wrongType(data, format)
		}
		return validateTree(tree)
	}
	return fmt.Errorf("unknown format %q: %w", format, apperr.ErrInvalidInput)
}

var knownKinds = []any{ast.KindDocument, ast.KindHeading, ast.KindList, ast.KindTitle}

func validateAST(root *ast.Node) error {
	if root == nil {
		return validation.Errors{"root": validation.ErrRequired}
	}
	errs := validation.Errors{}
	type frame struct {
		node *ast.Node
		path string
	}
	stack := []frame{{root, "root"}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.node
		err := validation.ValidateStruct(n,
			validation.Field(&n.ID, validation.Required),
			validation.Field(&n.Kind, validation.Required, validation.In(knownKinds...)),
			validation.Field(&n.Level,
				validation.When(n.Kind == ast.KindHeading, validation.Required, validation.Min(1), validation.Max(ast.MaxHeadingLevel))),
			validation.Field(&n.Name,
				validation.When(n.Kind == ast.KindHeading || n.Kind == ast.KindList, validation.Required)),
		)
		if err != nil {
			errs[f.path] = err
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			if c := n.Children[i]; c != nil {
				stack = append(stack, frame{c, fmt.Sprintf("%s.children[%d]", f.path, i)})
			}
		}
	}
	return errs.Filter()
}

func validateTree(tree *NodeTree) error {
	if tree == nil {
		return validation.Errors{"tree": validation.ErrRequired}
	}
	errs := validation.Errors{}
	if err := validation.Validate(tree.Meta); err != nil {
		errs["meta"] = err
	}
	if err := validation.Validate(tree.Format, validation.Required, validation.In(FormatNodeTree, FormatNodeArray)); err != nil {
		errs["format"] = err
	}
	if tree.Empty() {
		errs["data"] = validation.ErrRequired
	}

	seen := make(map[string]struct{})
	i := 0
	tree.Walk(func(n *TreeNode, _ int) {
		path := fmt.Sprintf("data[%d]", i)
		i++
		err := validation.ValidateStruct(n,
			validation.Field(&n.ID, validation.Required),
		)
		if err == nil && n.ID != "" {
			if _, dup := seen[n.ID]; dup {
				err = validation.NewError("validation_duplicate_id", "duplicate id "+n.ID)
			}
			seen[n.ID] = struct{}{}
		}
		if err == nil {
			if h := normalize(n); h.level != nil {
				err = validation.Validate(*h.level, validation.Min(1), validation.Max(ast.MaxHeadingLevel))
			}
		}
		if err != nil {
			errs[path] = err
		}
	})
	return errs.Filter()
}

// RoundTrip reports the outcome of RoundTripTest.
type RoundTrip struct {
	Format Format `json:"format"`
	// Success is true when the structure survived the cycle.
	Success bool `json:"success"`
	// Exact is true when the rendered Markdown equals the input byte for byte.
	Exact    bool   `json:"exact"`
	Original string `json:"original,omitempty"`
	Result   string `json:"result"`
	Diff     string `json:"diff,omitempty"`
}

// shapeOpts compares trees by structure: kinds, levels, ordered flags,
// names, notes and child order. Ids and layout details are ignored.
var shapeOpts = cmp.Options{
	cmpopts.IgnoreUnexported(ast.Node{}),
	cmpopts.IgnoreFields(ast.Node{}, "ID", "Marker", "Indent", "Raw", "Depth", "FullPath", "SiblingNodes"),
	cmpopts.EquateEmpty(),
}

// RoundTripTest drives input through the full conversion cycle and compares
// the result with where it started.
//
//	markdown: md -> ast -> nodetree -> ast -> md
//	ast:      ast -> md -> ast
//	nodetree: nodetree -> ast -> md -> ast
func (m *Manager) RoundTripTest(input any, format Format) (*RoundTrip, error) {
	switch format {
	case FormatMarkdown:
		md, ok := input.(string)
		if !ok {
			return nil, wrongType(input, format)
		}
		before, err := m.MdToAst(md)
		if err != nil {
			return nil, err
		}
		tree, err := m.AstToNodeTree(before)
		if err != nil {
			return nil, err
		}
		out, err := m.NodeTreeToMd(tree)
		if err != nil {
			return nil, err
		}
		after, err := m.MdToAst(out)
		if err != nil {
			return nil, err
		}
		diff := cmp.Diff(rootsOf(before), rootsOf(after), shapeOpts)
		return &RoundTrip{
			Format:   format,
			Success:  diff == "",
			Exact:    strings.TrimRight(out, "\n") == strings.TrimRight(md, "\n"),
			Original: md,
			Result:   out,
			Diff:     diff,
		}, nil

	case FormatAST:
		node, ok := input.(*ast.Node)
		if !ok {
			return nil, wrongType(input, format)
		}
		out, err := m.AstToMd(node)
		if err != nil {
			return nil, err
		}
		after, err := m.MdToAst(out)
		if err != nil {
			return nil, err
		}
		diff := cmp.Diff(rootsOf(node), rootsOf(after), shapeOpts)
		return &RoundTrip{Format: format, Success: diff == "", Result: out, Diff: diff}, nil

	case FormatTree:
		tree, ok := input.(*NodeTree)
		if !ok {
			return nil, wrongType(input, format)
		}
		before, err := m.NodeTreeToAst(tree)
		if err != nil {
			return nil, err
		}
		if m.astToMD == nil {
			return nil, notInitialized("ast_to_markdown")
		}
		out := m.astToMD.ConvertRoots(before)
		after, err := m.MdToAst(out)
		if err != nil {
			return nil, err
		}
		diff := cmp.Diff(before, rootsOf(after), shapeOpts)
		return &RoundTrip{Format: format, Success: diff == "", Result: out, Diff: diff}, nil
	}
	return nil, fmt.Errorf("unknown format %q: %w", format, apperr.ErrInvalidInput)
}

// rootsOf unwraps a document node into its children so that a collapsed
// single root and a wrapped one compare equal.
func rootsOf(n *ast.Node) []*ast.Node {
	switch {
	case n == nil:
		return nil
	case n.Kind == ast.KindDocument:
		return n.Children
	default:
		return []*ast.Node{n}
	}
}
