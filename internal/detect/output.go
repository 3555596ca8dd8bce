package detect

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// sentimentAPI describes a multi-field sentiment response: the primary
// field alone is ambiguous without the secondary one.
type sentimentAPI struct {
	imports   []string
	calls     []string
	primary   string
	secondary string
}

var sentimentAPIs = map[model.Provider]sentimentAPI{
	model.Google: {
		imports:   []string{"google.cloud.language", "language_v1", "from google.cloud import language"},
		calls:     []string{"analyze_sentiment"},
		primary:   "score",
		secondary: "magnitude",
	},
	model.Azure: {
		imports:   []string{"azure.ai.textanalytics", "azure.cognitiveservices"},
		calls:     []string{"analyze_sentiment", "begin_analyze_sentiment"},
		primary:   "sentiment",
		secondary: "confidence_scores",
	},
	model.AWS: {
		imports:   []string{"boto3", "comprehend"},
		calls:     []string{"detect_sentiment", "batch_detect_sentiment"},
		primary:   "Sentiment",
		secondary: "SentimentScore",
	},
}

// OutputMisread flags files that read a sentiment API result through its
// primary field only.
type OutputMisread struct{}

func (OutputMisread) Name() string { return "output-misread" }

func (d OutputMisread) Detect(_ context.Context, in *Input) (*model.Result, error) {
	api, ok := sentimentAPIs[in.Provider]
	if !ok {
		return newResult(d.Name(), nil, "not applicable: unknown provider"), nil
	}

	var findings []model.Finding
	for _, f := range in.Files {
		if reason, line, misuse := api.check(f.Tree); misuse {
			findings = append(findings, model.Finding{
				Kind:     model.OutputFieldMisuse,
				Location: model.Location{File: f.Path, Line: line},
				Callee:   strings.Join(api.calls, "|"),
				Message:  fmt.Sprintf("output misinterpretation in %s: %s", f.Path, reason),
			})
		}
	}
	return newResult(d.Name(), findings), nil
}

// fieldUse reports whether a node reads field: as an attribute, a string
// subscript key or a .get("field") argument.
func fieldUse(t *tree.Tree, id tree.NodeID, n *tree.Node, field string) bool {
	switch n.Kind {
	case tree.KindAttribute:
		return n.Name == field
	case tree.KindLiteral:
		if v, ok := stringValue(t, id); !ok || v != field {
			return false
		}
		p := t.Node(n.Parent)
		return p.Kind == tree.KindSubscript || p.Kind == tree.KindArguments
	}
	return false
}

func (api sentimentAPI) check(t *tree.Tree) (reason string, line int, misuse bool) {
	if !importTextContains(t, api.imports...) {
		return "", 0, false
	}

	var (
		callLine           int
		primary, secondary bool
		results            []string
		misuseLine         int
		correct            bool
	)
	t.Walk(func(id tree.NodeID, n *tree.Node) {
		switch {
		case n.Kind == tree.KindCall && slices.Contains(api.calls, n.Name):
			if callLine == 0 {
				callLine = n.Line
			}
			if p := t.Node(n.Parent); p.Kind == tree.KindAssignment {
				if target := t.Node(p.Children[0]); target.Kind == tree.KindIdentifier {
					results = append(results, target.Text)
				}
			}
		case fieldUse(t, id, n, api.primary):
			primary = true
		case fieldUse(t, id, n, api.secondary):
			secondary = true
		}
	})
	if callLine == 0 {
		return "", 0, false
	}

	// Conditions over an API result that mention only the primary field.
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if n.Kind != tree.KindComparison || t.Node(n.Parent).Kind == tree.KindComparison {
			return
		}
		if !mentionsAny(n.Text, results) && !strings.Contains(n.Text, "."+api.primary) {
			return
		}
		hasPrimary := strings.Contains(n.Text, api.primary)
		hasSecondary := strings.Contains(n.Text, api.secondary)
		switch {
		case hasPrimary && hasSecondary:
			correct = true
		case hasPrimary && misuseLine == 0:
			misuseLine = n.Line
		}
	})

	switch {
	case correct:
		return "", 0, false
	case primary && secondary:
		return "", 0, false
	case misuseLine > 0:
		return fmt.Sprintf("condition on %s without %s", api.primary, api.secondary), misuseLine, true
	case primary:
		return fmt.Sprintf("only %s used without %s", api.primary, api.secondary), callLine, true
	case !secondary:
		return "API used but no result field is read", callLine, true
	}
	return "", 0, false
}

func mentionsAny(s string, names []string) bool {
	for _, n := range names {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
