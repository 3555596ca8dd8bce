package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileTree builds: def name(): for x in xs: call()
func fileTree(path, name, call string) *Tree {
	t := New("module")
	fn := t.Add(t.Root(), Node{Kind: KindFunction, Name: name, File: path, Line: 1})
	loop := t.Add(fn, Node{Kind: KindLoop, File: path, Line: 2})
	t.Add(loop, Node{Kind: KindCall, Name: call, File: path, Line: 3})
	t.Link()
	return t
}

func TestKindNames(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, k := range Kinds() {
		name := k.String()
		assert.NotEmpty(t, name, "kind %d has no name", k)
		assert.False(t, seen[name], "duplicate kind name %q", name)
		seen[name] = true
		assert.True(t, k.Valid())
	}
	assert.False(t, Kind(200).Valid())
}

func TestLinkAndAncestors(t *testing.T) {
	t.Parallel()

	tr := fileTree("a.py", "batch", "upload")
	require.NoError(t, tr.Validate())

	call := NodeID(3)
	assert.Equal(t, KindCall, tr.Node(call).Kind)
	assert.True(t, tr.InsideLoop(call))
	assert.Equal(t, "batch", tr.EnclosingFunction(call))
	assert.Equal(t, "", tr.EnclosingFunction(NodeID(1)))
	assert.False(t, tr.InsideLoop(NodeID(1)))
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := fileTree("a.py", "f", "g")
	b := fileTree("b.py", "g", "post")
	merged := Merge([]*Tree{a, nil, b})

	require.NoError(t, merged.Validate())
	assert.Equal(t, 7, merged.Len())
	root := merged.Node(merged.Root())
	require.Len(t, root.Children, 2)
	assert.Equal(t, "f", merged.Node(root.Children[0]).Name)
	assert.Equal(t, "g", merged.Node(root.Children[1]).Name)

	var files []string
	merged.Walk(func(id NodeID, n *Node) {
		if n.Kind == KindCall {
			files = append(files, n.File)
			assert.True(t, merged.InsideLoop(id))
		}
	})
	assert.Equal(t, []string{"a.py", "b.py"}, files)

	// Inputs are untouched.
	require.NoError(t, a.Validate())
	assert.Equal(t, 4, a.Len())
}

func TestMergeEmpty(t *testing.T) {
	t.Parallel()

	merged := Merge(nil)
	require.NoError(t, merged.Validate())
	assert.Equal(t, 1, merged.Len())
}

func TestValidateRejectsMalformedTrees(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func() *Tree
	}{
		{"nil", func() *Tree { return nil }},
		{"non-root kind", func() *Tree {
			tr := New("module")
			tr.nodes[0].Kind = KindCall
			return tr
		}},
		{"stale parent", func() *Tree {
			tr := fileTree("a.py", "f", "g")
			tr.nodes[3].Parent = 1
			return tr
		}},
		{"shared child", func() *Tree {
			tr := fileTree("a.py", "f", "g")
			tr.nodes[0].Children = append(tr.nodes[0].Children, 3)
			return tr
		}},
		{"dangling child", func() *Tree {
			tr := fileTree("a.py", "f", "g")
			tr.nodes[3].Children = []NodeID{42}
			return tr
		}},
		{"unreachable node", func() *Tree {
			tr := fileTree("a.py", "f", "g")
			tr.nodes = append(tr.nodes, Node{Kind: KindOther, Parent: NoNode})
			return tr
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.build().Validate(), ErrMalformedTree)
		})
	}
}

func TestInspectBalance(t *testing.T) {
	t.Parallel()

	tr := Merge([]*Tree{fileTree("a.py", "f", "g"), fileTree("b.py", "h", "i")})
	depth, maxDepth := 0, 0
	var order []Kind
	tr.Inspect(tr.Root(), func(_ NodeID, n *Node) bool {
		order = append(order, n.Kind)
		if n.Kind == KindLoop {
			depth++
			maxDepth = max(maxDepth, depth)
		}
		return true
	}, func(_ NodeID, n *Node) {
		if n.Kind == KindLoop {
			depth--
		}
	})

	assert.Equal(t, 0, depth)
	assert.Equal(t, 1, maxDepth)
	assert.Equal(t, []Kind{KindRoot, KindFunction, KindLoop, KindCall, KindFunction, KindLoop, KindCall}, order)
}

func TestInspectSkip(t *testing.T) {
	t.Parallel()

	tr := fileTree("a.py", "f", "g")
	var visited int
	tr.Inspect(tr.Root(), func(_ NodeID, n *Node) bool {
		visited++
		return n.Kind != KindFunction
	}, func(NodeID, *Node) {})
	assert.Equal(t, 2, visited)
}
