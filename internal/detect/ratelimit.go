package detect

import (
	"context"
	"strings"

	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// rateLimitMonitors are the provider facilities that expose quota and
// throttling metrics.
var rateLimitMonitors = map[model.Provider][]struct {
	module  string
	metrics []string
}{
	model.Azure: {
		{"azure.monitor.query", []string{"MetricsQueryClient"}},
		{"azure.identity", []string{"IdentityClient"}},
	},
	model.Google: {
		{"google.cloud", []string{"monitoring_v3"}},
		{"google.auth", []string{"MetricsQueryClient"}},
	},
	model.AWS: {
		{"boto3", []string{"get_metric_data", "list_service_quotas"}},
	},
}

var (
	monitoringURLWords   = []string{"cloudwatch", "googleapis", "monitor", "ml", "metrics"}
	monitoringParamWords = []string{"limit", "quota", "rate", "metrics"}
	rateLimitHeaders     = []string{"x-apilimit", "x-ratelimit", "x-usage"}
)

// RateLimit flags repositories calling a provider's ML APIs without ever
// querying quota or throttling metrics.
type RateLimit struct{}

func (RateLimit) Name() string { return "rate-limit" }

func (d RateLimit) Detect(_ context.Context, in *Input) (*model.Result, error) {
	monitors, ok := rateLimitMonitors[in.Provider]
	if !ok {
		return newResult(d.Name(), nil, "not applicable: unknown provider"), nil
	}

	t := in.Tree
	for _, m := range monitors {
		if !importsModule(t, m.module) {
			continue
		}
		for _, metric := range m.metrics {
			if referencesName(t, metric) {
				return newResult(d.Name(), nil, m.module+": "+metric+" is used"), nil
			}
		}
	}

	if importsModule(t, "requests") {
		found := false
		calls(t, func(id tree.NodeID, n *tree.Node) {
			if !found && n.Member && n.Receiver == "requests" && isMonitoringRequest(t, id) {
				found = true
			}
		})
		if found {
			return newResult(d.Name(), nil, "requests: monitoring request found"), nil
		}
	}

	return newResult(d.Name(), []model.Finding{
		repoFinding(model.MissingRateLimitMonitor, "API limits and quotas are never monitored for "+string(in.Provider)),
	}), nil
}

// isMonitoringRequest inspects a requests.* call's url, method, params and
// headers for signs that it reads API limits.
func isMonitoringRequest(t *tree.Tree, call tree.NodeID) bool {
	url, _ := stringValue(t, keyword(t, call, "url"))
	method, _ := stringValue(t, keyword(t, call, "method"))
	if url != "" && containsAny(url, monitoringURLWords...) && (method == "GET" || method == "POST") {
		return true
	}

	params := keyword(t, call, "params")
	if params != tree.NoNode && t.Node(params).Kind == tree.KindIdentifier {
		params = assignedValue(t, t.Node(params).Text)
	}
	for _, k := range dictKeys(t, params) {
		if containsAny(k, monitoringParamWords...) {
			return true
		}
	}

	for _, k := range dictKeys(t, keyword(t, call, "headers")) {
		if containsAny(strings.ToLower(k), rateLimitHeaders...) {
			return true
		}
	}
	return false
}
