// Package parse converts source files into arena syntax trees using tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/misfinder/internal/lang"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// DefaultMaxDepth bounds how deeply nested a file's syntax tree may be.
const DefaultMaxDepth = 1000

var (
	// ErrSyntax is wrapped by failures for files tree-sitter could only
	// recover with error nodes.
	ErrSyntax = errors.New("syntax error")

	// ErrTooDeep is wrapped by failures for files nested beyond the depth limit.
	ErrTooDeep = errors.New("syntax tree exceeds depth limit")
)

// ParseFailure reports a file that could not be turned into a tree. The file
// is skipped; the run continues with the remaining files.
type ParseFailure struct {
	Path string
	Line int
	Err  error
}

func (e *ParseFailure) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// Parser turns source files of one language into trees.
// A Parser is not safe for concurrent use.
type Parser struct {
	lang     *lang.Language
	parser   *sitter.Parser
	maxDepth int
}

// NewParser creates a parser for l. A maxDepth <= 0 selects DefaultMaxDepth.
func NewParser(l *lang.Language, maxDepth int) *Parser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Parser{lang: l, parser: l.NewParser(), maxDepth: maxDepth}
}

// Parse builds the tree for one file. Every node carries the file's path.
// Errors are always *ParseFailure.
func (p *Parser) Parse(ctx context.Context, src model.SourceFile) (*tree.Tree, error) {
	ts, err := p.parser.ParseCtx(ctx, nil, src.Text)
	if err != nil {
		return nil, &ParseFailure{Path: src.Path, Err: err}
	}
	defer ts.Close()

	root := ts.RootNode()
	if root.HasError() {
		return nil, &ParseFailure{Path: src.Path, Line: firstErrorLine(root), Err: ErrSyntax}
	}

	var rootNode tree.Node
	top := p.lang.Describe(root, src.Text, &rootNode)
	t := tree.New(root.Type())

	type item struct {
		node   *sitter.Node
		parent tree.NodeID
		depth  int
	}
	stack := make([]item, 0, len(top))
	for i := len(top) - 1; i >= 0; i-- {
		stack = append(stack, item{node: top[i], parent: t.Root(), depth: 1})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.depth > p.maxDepth {
			return nil, &ParseFailure{
				Path: src.Path,
				Line: int(it.node.StartPoint().Row) + 1,
				Err:  fmt.Errorf("%w (%d)", ErrTooDeep, p.maxDepth),
			}
		}

		n := tree.Node{
			Type: it.node.Type(),
			File: src.Path,
			Line: int(it.node.StartPoint().Row) + 1,
		}
		children := p.lang.Describe(it.node, src.Text, &n)
		id := t.Add(it.parent, n)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, item{node: children[i], parent: id, depth: it.depth + 1})
		}
	}

	t.Link()
	return t, nil
}

// firstErrorLine returns the 1-based line of the first ERROR or missing node.
func firstErrorLine(root *sitter.Node) int {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == "ERROR" || n.IsMissing() {
			return int(n.StartPoint().Row) + 1
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil && (c.HasError() || c.IsMissing()) {
				stack = append(stack, c)
			}
		}
	}
	return 0
}
