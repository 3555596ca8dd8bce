package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/phobologic/misfinder/internal/model"
)

// driftMonitors maps drift-monitoring modules to the names whose use counts
// as monitoring.
var driftMonitors = []struct {
	module  string
	metrics []string
}{
	{"alibi_detect", []string{"Report", "Dashboard", "DataDriftPreset", "MMDDrift"}},
	{"evidently", []string{"Report", "Dashboard", "DataDriftPreset"}},
	{"scipy", []string{"Report", "Dashboard", "ks_2samp"}},
	{"sklearn", []string{"ModelQualityMonitor"}},
	{"mlflow", []string{"Report"}},
	{"dvc", []string{"Report"}},
	{"azureml.datadrift", []string{"DataDriftDetector", "AlertConfiguration"}},
	{"azure.ai.ml.entities", []string{"AlertNotification", "MonitorDefinition", "MonitoringTarget"}},
	{"google.cloud.aiplatform", []string{"ModelDeploymentMonitoringJob"}},
	{"sagemaker.model_monitor", []string{"DefaultModelMonitor", "ModelQualityMonitor"}},
}

// DataDrift flags repositories that never use a drift-monitoring metric from
// an imported monitoring library.
type DataDrift struct{}

func (DataDrift) Name() string { return "data-drift" }

func (d DataDrift) Detect(_ context.Context, in *Input) (*model.Result, error) {
	var imported []string
	for _, m := range driftMonitors {
		if !importsModule(in.Tree, m.module) {
			continue
		}
		imported = append(imported, m.module)
		for _, metric := range m.metrics {
			if referencesName(in.Tree, metric) {
				in.logger().Debug("drift monitoring in use", "module", m.module, "metric", metric)
				return newResult(d.Name(), nil, fmt.Sprintf("%s.%s is used", m.module, metric)), nil
			}
		}
	}

	msg := "no drift-monitoring library is imported"
	if len(imported) > 0 {
		msg = fmt.Sprintf("%s imported but none of its drift metrics are used", strings.Join(imported, ", "))
	}
	return newResult(d.Name(), []model.Finding{repoFinding(model.MissingDriftMonitoring, msg)}), nil
}
