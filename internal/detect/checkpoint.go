package detect

import (
	"context"
	"strings"

	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// checkpointSDKs are checked in order; the first SDK any import names wins.
var checkpointSDKs = []struct {
	sdk       model.Provider
	modules   []string
	functions []string
}{
	{model.Azure, []string{"azureml.core", "azureml.train"}, []string{"outputs", "torch.save", "torch.load"}},
	{model.Google, []string{"google.cloud", "tensorflow"}, []string{"ModelCheckpoint", "load_weights", "save_weights"}},
	{model.AWS, []string{"sagemaker", "boto3"}, []string{"checkpoint_s3_uri", "/opt/ml/checkpoints"}},
}

// Checkpoint flags training code that saves checkpoints without ever
// restoring them, or never checkpoints at all.
type Checkpoint struct{}

func (Checkpoint) Name() string { return "training-checkpoint" }

func (d Checkpoint) Detect(_ context.Context, in *Input) (*model.Result, error) {
	sdk := -1
	in.Tree.Walk(func(_ tree.NodeID, n *tree.Node) {
		if sdk >= 0 || n.Kind != tree.KindImport {
			return
		}
		for _, m := range n.Modules {
			for i, c := range checkpointSDKs {
				if containsAny(m, c.modules...) {
					sdk = i
					return
				}
			}
		}
	})
	if sdk < 0 {
		return newResult(d.Name(), nil, "not applicable: no training SDK imported"), nil
	}
	rule := checkpointSDKs[sdk]

	var saved, restored bool
	in.Tree.Walk(func(id tree.NodeID, n *tree.Node) {
		switch n.Kind {
		case tree.KindCall:
			callee := in.Tree.CalleeText(id)
			if containsAny(callee, rule.functions...) {
				saved = true
				if containsAny(callee, "restore", "load") {
					restored = true
				}
			}
		case tree.KindKeyword:
			// SageMaker checkpoints are configured, not called.
			if containsAny(n.Name, rule.functions...) {
				saved = true
			}
		case tree.KindLiteral:
			if n.Type == "string" && containsAny(unquote(n.Text), rule.functions...) {
				saved = true
			}
		}
	})
	if rule.sdk == model.AWS && saved && !restored {
		// Estimators restore from checkpoint_s3_uri when a checkpoint_local_path
		// is also set.
		restored = hasKeyword(in.Tree, "checkpoint_local_path")
	}

	note := "sdk: " + string(rule.sdk)
	switch {
	case saved && restored:
		return newResult(d.Name(), nil, note), nil
	case saved:
		return newResult(d.Name(), []model.Finding{
			repoFinding(model.MissingCheckpointing, "checkpoints are saved but never restored"),
		}, note), nil
	default:
		return newResult(d.Name(), []model.Finding{
			repoFinding(model.MissingCheckpointing, "training never saves a checkpoint ("+strings.Join(rule.functions, ", ")+")"),
		}, note), nil
	}
}

func hasKeyword(t *tree.Tree, name string) bool {
	found := false
	t.Walk(func(_ tree.NodeID, n *tree.Node) {
		if n.Kind == tree.KindKeyword && n.Name == name {
			found = true
		}
	})
	return found
}
