// Package graph builds a name-keyed call graph over a merged syntax tree and
// computes which functions reach a network call.
//
// Definitions are keyed by name only. Two functions with the same name in
// different files become one graph node, so the analysis over-approximates
// reachability rather than resolving scope.
package graph

import (
	"fmt"
	"sort"

	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// Edge is a (caller -> callee) pair.
type Edge struct {
	Caller string
	Callee string
}

// CallSite is one loop-enclosed call made from inside a function.
type CallSite struct {
	Caller   string
	Callee   string
	Location model.Location
}

// CallGraph is the output of the collect phase. It is not modified after
// Build returns.
type CallGraph struct {
	// Definitions holds every function name defined anywhere in the tree.
	Definitions map[string]struct{}

	// Calls maps a caller to the set of names it calls.
	Calls map[string]map[string]struct{}

	// LoopCalls lists every call made inside a loop from within a function,
	// in traversal order.
	LoopCalls []CallSite

	// Seeds maps each function that calls a network method directly to the
	// first such method it calls.
	Seeds map[string]string

	// KeywordFindings are network calls inside a loop that pass a risky
	// keyword argument.
	KeywordFindings []model.Finding
}

// Build walks t once and records definitions, call edges, loop-enclosed call
// sites and network seeds.
func Build(t *tree.Tree, cfg *config.Config) *CallGraph {
	network := cfg.NetworkMethodSet()
	risky := cfg.RiskyKeywordSet()

	g := &CallGraph{
		Definitions: make(map[string]struct{}),
		Calls:       make(map[string]map[string]struct{}),
		Seeds:       make(map[string]string),
	}

	t.Walk(func(id tree.NodeID, n *tree.Node) {
		switch n.Kind {
		case tree.KindFunction:
			g.Definitions[n.Name] = struct{}{}
			if g.Calls[n.Name] == nil {
				g.Calls[n.Name] = make(map[string]struct{})
			}
		case tree.KindCall:
			g.visitCall(t, id, n, network, risky)
		}
	})

	return g
}

func (g *CallGraph) visitCall(t *tree.Tree, id tree.NodeID, n *tree.Node, network, risky map[string]struct{}) {
	caller := t.EnclosingFunction(id)
	inLoop := t.InsideLoop(id)
	loc := model.Location{File: n.File, Line: n.Line}

	if caller != "" && n.Name != "" {
		if g.Calls[caller] == nil {
			g.Calls[caller] = make(map[string]struct{})
		}
		g.Calls[caller][n.Name] = struct{}{}
		if inLoop {
			g.LoopCalls = append(g.LoopCalls, CallSite{Caller: caller, Callee: n.Name, Location: loc})
		}
	}

	if !n.Member {
		return
	}
	if _, ok := network[n.Name]; !ok {
		return
	}
	if _, seen := g.Seeds[caller]; caller != "" && !seen {
		g.Seeds[caller] = n.Name
	}
	if !inLoop {
		return
	}
	_, keywords := t.Args(id)
	for _, kw := range keywords {
		name := t.Node(kw).Name
		if _, ok := risky[name]; !ok {
			continue
		}
		scope := caller
		if scope == "" {
			scope = model.ModuleScope
		}
		g.KeywordFindings = append(g.KeywordFindings, model.Finding{
			Kind:     model.KeywordArgumentInLoop,
			Location: loc,
			Caller:   scope,
			Callee:   n.Name,
			Message:  fmt.Sprintf("'%s' called with '%s' inside a loop in %s at %s", n.Name, name, scope, loc),
		})
	}
}

// Reach maps every network-reaching function to the next name on its path
// to a network method: a callee for transitive reach, the method itself for
// seeds.
type Reach map[string]string

// Contains reports whether fn reaches a network call.
func (r Reach) Contains(fn string) bool {
	_, ok := r[fn]
	return ok
}

// Path returns the call chain from fn down to the network method, including
// both ends. It is nil when fn does not reach the network.
func (r Reach) Path(fn string) []string {
	if !r.Contains(fn) {
		return nil
	}
	path := []string{fn}
	seen := map[string]struct{}{fn: {}}
	for {
		next, ok := r[fn]
		if !ok {
			return path
		}
		path = append(path, next)
		if _, loop := seen[next]; loop {
			return path
		}
		seen[next] = struct{}{}
		fn = next
	}
}

// Propagate returns every function that reaches a network call directly or
// through any chain of calls. It runs a work-list over reverse edges, so each
// function and edge is processed at most once and cycles terminate.
func (g *CallGraph) Propagate() Reach {
	callers := make(map[string][]string)
	for _, caller := range sortedKeys(g.Calls) {
		for _, callee := range sortedKeys(g.Calls[caller]) {
			callers[callee] = append(callers[callee], caller)
		}
	}

	reach := make(Reach, len(g.Seeds))
	queue := make([]string, 0, len(g.Seeds))
	for _, s := range sortedKeys(g.Seeds) {
		reach[s] = g.Seeds[s]
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, caller := range callers[fn] {
			if reach.Contains(caller) {
				continue
			}
			reach[caller] = fn
			queue = append(queue, caller)
		}
	}

	return reach
}

// Edges returns the deduplicated call edges sorted by caller, then callee.
func (g *CallGraph) Edges() []Edge {
	var edges []Edge
	for caller, callees := range g.Calls {
		for callee := range callees {
			edges = append(edges, Edge{Caller: caller, Callee: callee})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		return edges[i].Callee < edges[j].Callee
	})
	return edges
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
