package detect

import (
	"context"
	"fmt"
	"slices"

	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

var (
	trainMethods = []string{"train", "fit", "train_model", "start_training", "train_input", "fit_model"}
	testMethods  = []string{"predict", "evaluate", "test", "predict_model", "evaluate_model", "deploy"}

	schemaValidators = map[model.Provider]struct{ library, function string }{
		model.Azure:  {"azureml.dataprep", "validate_schema"},
		model.Google: {"tensorflow_data_validation", "validate_statistics"},
		model.AWS:    {"databrew", "validate_recipe"},
	}
)

// SchemaMismatch flags repositories that train and evaluate models without
// ever checking that training and serving data share a schema.
type SchemaMismatch struct{}

func (SchemaMismatch) Name() string { return "schema-mismatch" }

func (d SchemaMismatch) Detect(_ context.Context, in *Input) (*model.Result, error) {
	t := in.Tree
	train, test := datasetNames(t)
	if len(train) == 0 || len(test) == 0 {
		return newResult(d.Name(), []model.Finding{
			repoFinding(model.SchemaMismatchBlindness, "no training and test data found to validate"),
		}), nil
	}

	if v, ok := schemaValidators[in.Provider]; ok && importsModule(t, v.library) {
		used := false
		calls(t, func(_ tree.NodeID, n *tree.Node) {
			used = used || (n.Member && n.Name == v.function)
		})
		if used {
			return newResult(d.Name(), nil, v.library+"."+v.function+" is used"), nil
		}
	}

	if line, file, ok := trainTestComparison(t, train, test); ok {
		return newResult(d.Name(), nil, fmt.Sprintf("train/test comparison at %s:%d", file, line)), nil
	}

	return newResult(d.Name(), []model.Finding{
		repoFinding(model.SchemaMismatchBlindness, "training and test data are never compared or schema-validated"),
	}), nil
}

// datasetNames collects identifiers passed to training and evaluation calls,
// plus the four targets of `a, b, c, d = train_test_split(...)`.
func datasetNames(t *tree.Tree) (train, test []string) {
	t.Walk(func(id tree.NodeID, n *tree.Node) {
		switch n.Kind {
		case tree.KindCall:
			if !n.Member {
				return
			}
			var dst *[]string
			switch {
			case slices.Contains(trainMethods, n.Name):
				dst = &train
			case slices.Contains(testMethods, n.Name):
				dst = &test
			default:
				return
			}
			pos, _ := t.Args(id)
			for _, a := range pos {
				if arg := t.Node(a); arg.Kind == tree.KindIdentifier {
					*dst = append(*dst, arg.Text)
				}
			}
		case tree.KindAssignment:
			if len(n.Children) < 2 {
				return
			}
			lhs, rhs := t.Node(n.Children[0]), t.Node(n.Children[len(n.Children)-1])
			if rhs.Kind != tree.KindCall || rhs.Name != "train_test_split" || len(lhs.Children) != 4 {
				return
			}
			for i, c := range lhs.Children {
				v := t.Node(c)
				if v.Kind != tree.KindIdentifier {
					continue
				}
				if i%2 == 0 {
					train = append(train, v.Text)
				} else {
					test = append(test, v.Text)
				}
			}
		}
	})
	return train, test
}

// trainTestComparison finds a comparison whose operands are rooted at a
// training name on one side and a test name on the other.
func trainTestComparison(t *tree.Tree, train, test []string) (line int, file string, ok bool) {
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if ok || n.Type != "comparison_operator" || len(n.Children) < 2 {
			return
		}
		left := baseName(t, n.Children[0])
		right := baseName(t, n.Children[len(n.Children)-1])
		if (slices.Contains(train, left) && slices.Contains(test, right)) ||
			(slices.Contains(test, left) && slices.Contains(train, right)) {
			line, file, ok = n.Line, n.File, true
		}
	})
	return line, file, ok
}

// baseName follows attribute, subscript and call chains down to the
// identifier they start from.
func baseName(t *tree.Tree, id tree.NodeID) string {
	for id != tree.NoNode {
		n := t.Node(id)
		switch n.Kind {
		case tree.KindIdentifier:
			return n.Text
		case tree.KindAttribute, tree.KindSubscript, tree.KindCall:
			if len(n.Children) == 0 {
				return ""
			}
			id = n.Children[0]
		default:
			return ""
		}
	}
	return ""
}
