package batch

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/graph"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// Report is the aggregated outcome of one batch analysis.
type Report struct {
	Count    int
	Findings []model.Finding
	Edges    int
	Reaching int
}

// Aggregate runs the loop-call scanner, builds the call graph, propagates
// network reachability and merges all three finding sets. It fails fast with
// tree.ErrMalformedTree when t is not a valid single-rooted tree.
func Aggregate(t *tree.Tree, cfg *config.Config, p model.Provider, logger *slog.Logger) (*Report, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("batch analysis: %w", err)
	}

	direct := NewScanner(cfg, p, logger).Scan(t)

	g := graph.Build(t, cfg)
	reach := g.Propagate()

	var transitive []model.Finding
	for _, site := range g.LoopCalls {
		if !reach.Contains(site.Callee) {
			continue
		}
		transitive = append(transitive, model.Finding{
			Kind:     model.TransitiveBatchViolation,
			Location: site.Location,
			Caller:   site.Caller,
			Callee:   site.Callee,
			Message: fmt.Sprintf("'%s' called inside a loop in %s at %s reaches a network call (%s)",
				site.Callee, site.Caller, site.Location, strings.Join(reach.Path(site.Callee), " -> ")),
		})
	}

	findings := Merge(direct, g.KeywordFindings, transitive)
	return &Report{
		Count:    len(findings),
		Findings: findings,
		Edges:    len(g.Edges()),
		Reaching: len(reach),
	}, nil
}

// Merge concatenates finding sets, keeps the first finding for each
// (kind, location, caller, callee) identity and sorts the result by
// location, then kind, caller and callee.
func Merge(sets ...[]model.Finding) []model.Finding {
	seen := make(map[model.Key]struct{})
	var out []model.Finding
	for _, set := range sets {
		for _, f := range set {
			k := f.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Caller != b.Caller {
			return a.Caller < b.Caller
		}
		return a.Callee < b.Callee
	})
	return out
}
