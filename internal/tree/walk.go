package tree

// Inspect traverses the subtree rooted at start in pre-order without native
// recursion. enter is called on the way down; returning false skips the
// node's children and its leave call. leave, if non-nil, runs after the whole
// subtree has been visited.
func (t *Tree) Inspect(start NodeID, enter func(NodeID, *Node) bool, leave func(NodeID, *Node)) {
	type frame struct {
		id      NodeID
		leaving bool
	}
	stack := []frame{{id: start}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[f.id]
		if f.leaving {
			leave(f.id, n)
			continue
		}
		if !enter(f.id, n) {
			continue
		}
		if leave != nil {
			stack = append(stack, frame{id: f.id, leaving: true})
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: n.Children[i]})
		}
	}
}

// Walk visits every node in pre-order.
func (t *Tree) Walk(fn func(NodeID, *Node)) {
	t.Inspect(t.Root(), func(id NodeID, n *Node) bool {
		fn(id, n)
		return true
	}, nil)
}

// Nearest returns the closest strict ancestor of id with the given kind, or
// NoNode.
func (t *Tree) Nearest(id NodeID, kind Kind) NodeID {
	for p := t.nodes[id].Parent; p != NoNode; p = t.nodes[p].Parent {
		if t.nodes[p].Kind == kind {
			return p
		}
	}
	return NoNode
}

// EnclosingFunction returns the name of the innermost function definition
// containing id, or "" at module scope.
func (t *Tree) EnclosingFunction(id NodeID) string {
	if fn := t.Nearest(id, KindFunction); fn != NoNode {
		return t.nodes[fn].Name
	}
	return ""
}

// InsideLoop reports whether any ancestor of id is a loop.
func (t *Tree) InsideLoop(id NodeID) bool {
	return t.Nearest(id, KindLoop) != NoNode
}

// ChildOfKind returns the first direct child of id with the given kind.
func (t *Tree) ChildOfKind(id NodeID, kind Kind) NodeID {
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Kind == kind {
			return c
		}
	}
	return NoNode
}

// Args returns the positional argument ids and keyword argument ids of a call.
func (t *Tree) Args(call NodeID) (positional, keywords []NodeID) {
	args := t.ChildOfKind(call, KindArguments)
	if args == NoNode {
		return nil, nil
	}
	for _, c := range t.nodes[args].Children {
		if t.nodes[c].Kind == KindKeyword {
			keywords = append(keywords, c)
		} else {
			positional = append(positional, c)
		}
	}
	return positional, keywords
}

// KeywordValue returns the value node of a keyword argument.
func (t *Tree) KeywordValue(kw NodeID) NodeID {
	ch := t.nodes[kw].Children
	if len(ch) == 0 {
		return NoNode
	}
	return ch[len(ch)-1]
}

// CalleeText returns the source text of a call's function expression, such
// as "torch.save" for a member call or "EarlyStopping" for a direct call.
func (t *Tree) CalleeText(call NodeID) string {
	for _, c := range t.nodes[call].Children {
		switch n := &t.nodes[c]; n.Kind {
		case KindAttribute, KindIdentifier:
			return n.Text
		case KindArguments:
			return t.nodes[call].Name
		}
	}
	return t.nodes[call].Name
}
