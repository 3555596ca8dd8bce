// Package detect defines the detector contract and the single-pass
// intraprocedural pattern detectors.
//
// Every detector reads an immutable Input and returns a uniform
// model.Result. Detectors never mutate the trees they are given.
package detect

import (
	"context"
	"log/slog"
	"strings"

	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/parse"
	"github.com/phobologic/misfinder/internal/tree"
)

// Input is everything a detector may read about one repository.
type Input struct {
	Repo     string
	Tree     *tree.Tree       // merged repository tree
	Files    []parse.FileTree // per-file trees, in discovery order
	Provider model.Provider
	Config   *config.Config
	Logger   *slog.Logger
}

// Detector is one anti-pattern check.
type Detector interface {
	Name() string
	Detect(ctx context.Context, in *Input) (*model.Result, error)
}

// Patterns returns the intraprocedural pattern detectors in report order.
func Patterns() []Detector {
	return []Detector{
		DataDrift{},
		EarlyStopping{},
		Checkpoint{},
		SchemaMismatch{},
		RateLimit{},
		OutputMisread{},
	}
}

func newResult(name string, findings []model.Finding, notes ...string) *model.Result {
	if findings == nil {
		findings = []model.Finding{}
	}
	return &model.Result{Detector: name, Count: len(findings), Findings: findings, Notes: notes}
}

// repoFinding is a finding about the repository as a whole.
func repoFinding(kind model.FindingKind, msg string) model.Finding {
	return model.Finding{Kind: kind, Message: msg}
}

func (in *Input) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return in.Logger
}

// importsModule reports whether any import in t names module or one of its
// submodules.
func importsModule(t *tree.Tree, module string) bool {
	found := false
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if found || n.Kind != tree.KindImport {
			return
		}
		for _, m := range n.Modules {
			if m == module || strings.HasPrefix(m, module+".") {
				found = true
				return
			}
		}
	})
	return found
}

// importTextContains reports whether any import statement's text contains
// one of patterns.
func importTextContains(t *tree.Tree, patterns ...string) bool {
	found := false
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if found || n.Kind != tree.KindImport {
			return
		}
		for _, p := range patterns {
			if strings.Contains(n.Text, p) {
				found = true
				return
			}
		}
	})
	return found
}

// referencesName reports whether name appears as an identifier, an accessed
// attribute or a called name anywhere in t.
func referencesName(t *tree.Tree, name string) bool {
	found := false
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if found {
			return
		}
		switch n.Kind {
		case tree.KindIdentifier:
			found = n.Text == name
		case tree.KindAttribute, tree.KindCall:
			found = n.Name == name
		}
	})
	return found
}

// calls invokes fn for every call node in t.
func calls(t *tree.Tree, fn func(id tree.NodeID, n *tree.Node)) {
	t.Walk(func(id tree.NodeID, n *tree.Node) {
		if n.Kind == tree.KindCall {
			fn(id, n)
		}
	})
}

// keyword returns the value node of a call's keyword argument, or NoNode.
func keyword(t *tree.Tree, call tree.NodeID, name string) tree.NodeID {
	_, kws := t.Args(call)
	for _, kw := range kws {
		if t.Node(kw).Name == name {
			return t.KeywordValue(kw)
		}
	}
	return tree.NoNode
}

// stringValue returns the contents of a string literal node.
func stringValue(t *tree.Tree, id tree.NodeID) (string, bool) {
	if id == tree.NoNode {
		return "", false
	}
	n := t.Node(id)
	if n.Kind != tree.KindLiteral || n.Type != "string" {
		return "", false
	}
	return unquote(n.Text), true
}

// unquote strips a Python string prefix and its quotes.
func unquote(s string) string {
	if i := strings.IndexAny(s, `"'`); i > 0 && i <= 2 && strings.Trim(s[:i], "rRbBuUfF") == "" {
		s = s[i:]
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// dictKeys returns the string keys of a dictionary literal node.
func dictKeys(t *tree.Tree, id tree.NodeID) []string {
	if id == tree.NoNode || t.Node(id).Type != "dictionary" {
		return nil
	}
	var keys []string
	for _, pair := range t.Node(id).Children {
		p := t.Node(pair)
		if p.Type != "pair" || len(p.Children) == 0 {
			continue
		}
		if k, ok := stringValue(t, p.Children[0]); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// assignedValue returns the value of the first `name = value` assignment in
// t, or NoNode.
func assignedValue(t *tree.Tree, name string) tree.NodeID {
	result := tree.NoNode
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if result != tree.NoNode || n.Kind != tree.KindAssignment || len(n.Children) < 2 {
			return
		}
		target := t.Node(n.Children[0])
		if target.Kind == tree.KindIdentifier && target.Text == name {
			result = n.Children[len(n.Children)-1]
		}
	})
	return result
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
