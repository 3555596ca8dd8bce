// Package tree holds the arena-allocated syntax tree shared by every detector.
//
// Nodes are addressed by NodeID and store a non-owning Parent id, so ancestor
// queries walk an id chain instead of holding pointers back up the tree.
package tree

import (
	"errors"
	"fmt"
)

// NodeID addresses a node inside a Tree.
type NodeID int32

// NoNode marks an absent node (the root's parent, a failed lookup).
const NoNode NodeID = -1

// Kind is the closed set of node categories the analyses distinguish.
type Kind uint8

const (
	KindOther Kind = iota
	KindRoot
	KindImport
	KindFunction
	KindClass
	KindCall
	KindArguments
	KindKeyword
	KindLoop
	KindAssignment
	KindAttribute
	KindSubscript
	KindIdentifier
	KindLiteral
	KindSequence
	KindComparison

	numKinds
)

var kindNames = [numKinds]string{
	KindOther:      "other",
	KindRoot:       "root",
	KindImport:     "import",
	KindFunction:   "function",
	KindClass:      "class",
	KindCall:       "call",
	KindArguments:  "arguments",
	KindKeyword:    "keyword",
	KindLoop:       "loop",
	KindAssignment: "assignment",
	KindAttribute:  "attribute",
	KindSubscript:  "subscript",
	KindIdentifier: "identifier",
	KindLiteral:    "literal",
	KindSequence:   "sequence",
	KindComparison: "comparison",
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("kind(%d)", k)
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return k < numKinds }

// Kinds returns every declared kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Node is a single syntax node.
//
// Name carries the defined name for functions and classes, the callee name
// for calls, the attribute name for attribute accesses and the argument name
// for keyword arguments. Text holds source text only for the small node kinds
// the detectors compare against (identifiers, literals, attributes,
// subscripts, comparisons, imports).
type Node struct {
	Kind     Kind
	Type     string
	Name     string
	Text     string
	Receiver string   // member calls on a bare identifier: that identifier
	Member   bool     // calls whose callee is an attribute access
	Modules  []string // imports: imported module paths
	File     string
	Line     int
	Parent   NodeID
	Children []NodeID
}

// ErrMalformedTree reports a structural invariant violation.
var ErrMalformedTree = errors.New("malformed syntax tree")

// Tree is an index-addressed arena. Node 0 is always the root.
type Tree struct {
	nodes []Node
}

// New returns a tree containing only a root node of the given kind and type.
func New(rootType string) *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, Node{Kind: KindRoot, Type: rootType, Parent: NoNode})
	return t
}

// Root returns the id of the root node.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes, including the root.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id. It panics on an out-of-range id.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// Add appends n as a child of parent and returns its id. The parent
// back-reference is left unset until Link runs.
func (t *Tree) Add(parent NodeID, n Node) NodeID {
	id := NodeID(len(t.nodes))
	n.Parent = NoNode
	n.Children = nil
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Link performs a single full walk from the root assigning every node its
// parent back-reference.
func (t *Tree) Link() {
	if len(t.nodes) == 0 {
		return
	}
	t.nodes[0].Parent = NoNode
	stack := []NodeID{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range t.nodes[id].Children {
			t.nodes[c].Parent = id
			stack = append(stack, c)
		}
	}
}

// Validate checks the single-rooted tree invariants: node 0 is the only root,
// every child id is in range and has exactly one parent, and every parent
// back-reference agrees with the children lists.
func (t *Tree) Validate() error {
	if t == nil || len(t.nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrMalformedTree)
	}
	if t.nodes[0].Kind != KindRoot {
		return fmt.Errorf("%w: node 0 is %s, want root", ErrMalformedTree, t.nodes[0].Kind)
	}
	if t.nodes[0].Parent != NoNode {
		return fmt.Errorf("%w: root has parent %d", ErrMalformedTree, t.nodes[0].Parent)
	}
	seen := make([]bool, len(t.nodes))
	seen[0] = true
	for i := range t.nodes {
		n := &t.nodes[i]
		if !n.Kind.Valid() {
			return fmt.Errorf("%w: node %d has unknown kind %d", ErrMalformedTree, i, n.Kind)
		}
		for _, c := range n.Children {
			if c <= 0 || int(c) >= len(t.nodes) {
				return fmt.Errorf("%w: node %d has out-of-range child %d", ErrMalformedTree, i, c)
			}
			if seen[c] {
				return fmt.Errorf("%w: node %d has more than one parent", ErrMalformedTree, c)
			}
			seen[c] = true
			if t.nodes[c].Parent != NodeID(i) {
				return fmt.Errorf("%w: node %d parent is %d, want %d", ErrMalformedTree, c, t.nodes[c].Parent, i)
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: node %d is unreachable from the root", ErrMalformedTree, i)
		}
	}
	return nil
}

// Merge concatenates the top-level statements of every file tree under one
// synthetic root and links parent back-references. File trees are not
// modified.
func Merge(files []*Tree) *Tree {
	total := 1
	for _, f := range files {
		if f != nil {
			total += f.Len() - 1
		}
	}
	merged := &Tree{nodes: make([]Node, 1, total)}
	merged.nodes[0] = Node{Kind: KindRoot, Type: "repository", Parent: NoNode}

	for _, f := range files {
		if f == nil || f.Len() == 0 {
			continue
		}
		// File node i (i >= 1) lands at offset+i; the file root is dropped.
		offset := NodeID(len(merged.nodes) - 1)
		for i := 1; i < len(f.nodes); i++ {
			n := f.nodes[i]
			if len(n.Children) > 0 {
				children := make([]NodeID, len(n.Children))
				for j, c := range n.Children {
					children[j] = c + offset
				}
				n.Children = children
			}
			n.Parent = NoNode
			merged.nodes = append(merged.nodes, n)
		}
		for _, c := range f.nodes[0].Children {
			merged.nodes[0].Children = append(merged.nodes[0].Children, c+offset)
		}
	}

	merged.Link()
	return merged
}
