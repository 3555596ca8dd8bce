package detect

import (
	"context"

	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

type earlyStopRule struct {
	sdk     []string // import text marking the training SDK
	imports []string // import text marking the early-stopping facility
	valid   func(t *tree.Tree, id tree.NodeID, n *tree.Node) bool
	want    string
}

var earlyStopRules = map[model.Provider]earlyStopRule{
	model.Azure: {
		sdk:     []string{"azureml.core", "azureml.train", "azure.ai.ml"},
		imports: []string{"azure.ai.ml.sweep"},
		valid: func(t *tree.Tree, id tree.NodeID, n *tree.Node) bool {
			return n.Member && n.Receiver != "" && n.Name == "set_limits" &&
				keyword(t, id, "max_total_trials") != tree.NoNode &&
				keyword(t, id, "max_concurrent_trials") != tree.NoNode &&
				keyword(t, id, "timeout") != tree.NoNode
		},
		want: "set_limits(max_total_trials=, max_concurrent_trials=, timeout=)",
	},
	model.AWS: {
		sdk:     []string{"sagemaker"},
		imports: []string{"from sagemaker.tuner import HyperparameterTuner", "sagemaker.tuner"},
		valid: func(t *tree.Tree, id tree.NodeID, n *tree.Node) bool {
			if n.Name != "HyperparameterTuner" {
				return false
			}
			v, ok := stringValue(t, keyword(t, id, "early_stopping_type"))
			return ok && v == "Auto"
		},
		want: `HyperparameterTuner(early_stopping_type="Auto")`,
	},
	model.Google: {
		sdk:     []string{"google.cloud", "tensorflow"},
		imports: []string{"from tensorflow.keras.callbacks import EarlyStopping"},
		valid: func(t *tree.Tree, id tree.NodeID, n *tree.Node) bool {
			if n.Name != "EarlyStopping" {
				return false
			}
			_, monitor := stringValue(t, keyword(t, id, "monitor"))
			return monitor &&
				isLiteral(t, keyword(t, id, "patience")) &&
				isLiteral(t, keyword(t, id, "restore_best_weights"))
		},
		want: "EarlyStopping(monitor=, patience=, restore_best_weights=)",
	},
}

func isLiteral(t *tree.Tree, id tree.NodeID) bool {
	return id != tree.NoNode && t.Node(id).Kind == tree.KindLiteral
}

// EarlyStopping flags training code on a provider SDK that never configures
// early stopping correctly.
type EarlyStopping struct{}

func (EarlyStopping) Name() string { return "early-stopping" }

func (d EarlyStopping) Detect(_ context.Context, in *Input) (*model.Result, error) {
	rule, ok := earlyStopRules[in.Provider]
	if !ok {
		return newResult(d.Name(), nil, "not applicable: unknown provider"), nil
	}
	if !importTextContains(in.Tree, rule.sdk...) {
		return newResult(d.Name(), nil, "not applicable: provider training SDK not imported"), nil
	}

	if !importTextContains(in.Tree, rule.imports...) {
		return newResult(d.Name(), []model.Finding{
			repoFinding(model.MissingEarlyStopping, "early stopping is not imported for "+string(in.Provider)),
		}), nil
	}

	var found bool
	calls(in.Tree, func(id tree.NodeID, n *tree.Node) {
		if !found && rule.valid(in.Tree, id, n) {
			found = true
		}
	})
	if found {
		return newResult(d.Name(), nil), nil
	}
	return newResult(d.Name(), []model.Finding{
		repoFinding(model.MissingEarlyStopping, "early stopping is imported but never configured as "+rule.want),
	}), nil
}
