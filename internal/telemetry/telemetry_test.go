package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/misfinder/internal/model"
)

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	var quiet, loud bytes.Buffer
	NewLogger(&quiet, false).Debug("hidden")
	NewLogger(&loud, true).Debug("shown", "repo", "r")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "msg=shown")
	assert.Contains(t, loud.String(), "repo=r")
}

func report() *model.RepoReport {
	return &model.RepoReport{
		Repo:          "r",
		Files:         5,
		ParseFailures: 1,
		Results: []model.Result{
			{Detector: "batch-api", Count: 2, Findings: []model.Finding{
				{Kind: model.DirectSingularInLoop},
				{Kind: model.TransitiveBatchViolation},
			}},
			{Detector: "data-drift", Count: 1, Findings: []model.Finding{{Kind: model.MissingDriftMonitoring}}},
		},
	}
}

func TestObserveReport(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveReport(report(), 250*time.Millisecond)
	m.ObserveReport(&model.RepoReport{Repo: "bad", Err: "boom"}, time.Second)

	assert.InDelta(t, 4, testutil.ToFloat64(m.FilesParsed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ParseFailures), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Findings.WithLabelValues("batch-api", string(model.DirectSingularInLoop))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Findings.WithLabelValues("data-drift", string(model.MissingDriftMonitoring))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Repositories.WithLabelValues("scanned")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Repositories.WithLabelValues("error")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.AnalysisSeconds))
}

func TestCachedReportSkipsParseCounters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	r := report()
	r.Cached = true
	m.ObserveReport(r, time.Millisecond)

	assert.Zero(t, testutil.ToFloat64(m.FilesParsed))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Repositories.WithLabelValues("cached")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Findings.WithLabelValues("batch-api", string(model.TransitiveBatchViolation))), 0)
}

func TestNilMetricsAreInert(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveReport(report(), time.Second)
	assert.NoError(t, m.WriteFile(filepath.Join(t.TempDir(), "never.prom")))
	assert.Nil(t, m.Registry())
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveReport(report(), time.Second)

	path := filepath.Join(t.TempDir(), "misfinder.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "misfinder_files_parsed_total 4")
	assert.Contains(t, text, `misfinder_findings_total{detector="batch-api",kind="direct-singular-in-loop"} 1`)
	assert.True(t, strings.Contains(text, "# HELP misfinder_analysis_seconds"))
}

func TestTracerExportsSpans(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	tracer, shutdown, err := NewTracer(&out, "test", true)
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "scan repo")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, out.String(), `"Name": "scan repo"`)
	assert.Contains(t, out.String(), ServiceName)
}

func TestDisabledTracerWritesNothing(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	tracer, shutdown, err := NewTracer(&out, "test", false)
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "scan repo")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, out.String())
}
