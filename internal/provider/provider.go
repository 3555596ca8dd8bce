// Package provider infers which cloud ML vendor a repository targets.
package provider

import (
	"strings"

	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// Classifier returns the inferred provider for a tree.
type Classifier interface {
	Classify(t *tree.Tree) model.Provider
}

// ImportClassifier counts imported modules matching each provider's import
// keywords and picks the provider with the highest count. Ties go to the
// provider configured first; no matches yields model.Unknown.
type ImportClassifier struct {
	rules []config.ProviderRules
}

// NewImportClassifier creates a classifier over cfg's provider tables.
func NewImportClassifier(cfg *config.Config) *ImportClassifier {
	return &ImportClassifier{rules: cfg.Providers}
}

// Counts returns the number of matching imports per provider.
func (c *ImportClassifier) Counts(t *tree.Tree) map[model.Provider]int {
	counts := make(map[model.Provider]int, len(c.rules))
	for i := range c.rules {
		counts[c.rules[i].Name] = 0
	}
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if n.Kind != tree.KindImport {
			return
		}
		for _, mod := range n.Modules {
			for i := range c.rules {
				if matchesAny(mod, c.rules[i].ImportKeywords) {
					counts[c.rules[i].Name]++
				}
			}
		}
	})
	return counts
}

// Classify implements Classifier.
func (c *ImportClassifier) Classify(t *tree.Tree) model.Provider {
	counts := c.Counts(t)
	best, bestCount := model.Unknown, 0
	for i := range c.rules {
		if n := counts[c.rules[i].Name]; n > bestCount {
			best, bestCount = c.rules[i].Name, n
		}
	}
	return best
}

func matchesAny(module string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(module, kw) {
			return true
		}
	}
	return false
}
