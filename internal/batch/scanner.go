// Package batch detects per-item remote calls made inside loops where a
// batched call would do.
package batch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// ArgClass classifies the first positional argument of a service call.
type ArgClass int

const (
	ArgSingle ArgClass = iota
	ArgPotentialPlural
	ArgPlural
)

func (c ArgClass) String() string {
	switch c {
	case ArgPlural:
		return "plural"
	case ArgPotentialPlural:
		return "potential plural"
	default:
		return "single"
	}
}

// Scanner flags singular-capable service methods called inside loops.
type Scanner struct {
	services map[string]struct{}
	suffixes []string
	logger   *slog.Logger
}

// NewScanner returns a scanner using p's singular-service table. An unknown
// provider yields an empty table and no findings.
func NewScanner(cfg *config.Config, p model.Provider, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		services: cfg.SingularServices(p),
		suffixes: cfg.PluralSuffixes,
		logger:   logger,
	}
}

// Classify returns the argument class of a call's first positional argument.
// The plural-suffix check is a naming heuristic, not a type check.
func (s *Scanner) Classify(t *tree.Tree, call tree.NodeID) ArgClass {
	positional, _ := t.Args(call)
	if len(positional) == 0 {
		return ArgSingle
	}
	arg := t.Node(positional[0])
	switch arg.Kind {
	case tree.KindSequence:
		return ArgPlural
	case tree.KindIdentifier:
		for _, suf := range s.suffixes {
			if strings.HasSuffix(arg.Text, suf) {
				return ArgPotentialPlural
			}
		}
	}
	return ArgSingle
}

// Scan walks t and returns one finding per distinct misuse message.
func (s *Scanner) Scan(t *tree.Tree) []model.Finding {
	findings, _ := s.scan(t)
	return findings
}

// scan also returns the loop depth left after the walk, which is always 0.
func (s *Scanner) scan(t *tree.Tree) ([]model.Finding, int) {
	var (
		depth    int
		findings []model.Finding
		seen     = make(map[string]struct{})
	)
	if len(s.services) == 0 {
		return nil, 0
	}

	t.Inspect(t.Root(), func(id tree.NodeID, n *tree.Node) bool {
		switch n.Kind {
		case tree.KindLoop:
			depth++
		case tree.KindCall:
			if f, ok := s.check(t, id, n, depth); ok {
				if _, dup := seen[f.Message]; !dup {
					seen[f.Message] = struct{}{}
					findings = append(findings, f)
				}
			}
		}
		return true
	}, func(_ tree.NodeID, n *tree.Node) {
		if n.Kind == tree.KindLoop {
			depth--
			if depth < 0 {
				panic("batch: loop depth went negative")
			}
		}
	})

	return findings, depth
}

func (s *Scanner) check(t *tree.Tree, id tree.NodeID, n *tree.Node, depth int) (model.Finding, bool) {
	if !n.Member || n.Receiver == "" {
		return model.Finding{}, false
	}
	if _, ok := s.services[n.Name]; !ok {
		return model.Finding{}, false
	}

	class := s.Classify(t, id)
	loc := model.Location{File: n.File, Line: n.Line}
	if depth == 0 {
		s.logger.Debug("service call outside a loop", "service", n.Name, "argument", class.String(), "location", loc.String())
		return model.Finding{}, false
	}
	if class == ArgPlural {
		s.logger.Debug("service call inside a loop with plural argument", "service", n.Name, "location", loc.String())
		return model.Finding{}, false
	}

	caller := t.EnclosingFunction(id)
	if caller == "" {
		caller = model.ModuleScope
	}
	return model.Finding{
		Kind:     model.DirectSingularInLoop,
		Location: loc,
		Caller:   caller,
		Callee:   n.Name,
		Message:  fmt.Sprintf("'%s' found inside a loop with %s argument at line %d of %s", n.Name, class, n.Line, n.File),
	}, true
}
