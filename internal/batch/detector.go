package batch

import (
	"context"
	"fmt"

	"github.com/phobologic/misfinder/internal/detect"
	"github.com/phobologic/misfinder/internal/model"
)

// Detector runs the interprocedural batch analysis as a detect.Detector.
type Detector struct{}

var _ detect.Detector = Detector{}

func (Detector) Name() string { return "batch-api" }

func (d Detector) Detect(ctx context.Context, in *detect.Input) (*model.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rep, err := Aggregate(in.Tree, in.Config, in.Provider, in.Logger)
	if err != nil {
		return nil, err
	}
	notes := []string{fmt.Sprintf("%d call edges, %d network-reaching functions", rep.Edges, rep.Reaching)}
	if in.Provider == model.Unknown {
		notes = append(notes, "provider unknown: singular-service checks skipped")
	}
	findings := rep.Findings
	if findings == nil {
		findings = []model.Finding{}
	}
	return &model.Result{Detector: d.Name(), Count: rep.Count, Findings: findings, Notes: notes}, nil
}
