package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phobologic/misfinder/internal/model"
)

const metricsNamespace = "misfinder"

// Metrics are the counters of one run, held on a private registry so
// repeated runs in one process never collide.
//
// All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	Findings        *prometheus.CounterVec
	Repositories    *prometheus.CounterVec
	FilesParsed     prometheus.Counter
	ParseFailures   prometheus.Counter
	AnalysisSeconds prometheus.Histogram
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "findings_total",
				Help:      "Findings reported by detector and kind",
			},
			[]string{"detector", "kind"},
		),
		Repositories: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "repositories_total",
				Help:      "Repositories scanned by outcome",
			},
			[]string{"status"},
		),
		FilesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_parsed_total",
			Help:      "Source files parsed successfully",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parse_failures_total",
			Help:      "Source files skipped because they could not be parsed",
		}),
		AnalysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "analysis_seconds",
			Help:      "Wall time spent analysing one repository",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
	m.registry.MustRegister(m.Findings, m.Repositories, m.FilesParsed, m.ParseFailures, m.AnalysisSeconds)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveReport records one repository's report. Cached reports count
// toward findings and outcome but not toward parsing or timing.
func (m *Metrics) ObserveReport(r *model.RepoReport, elapsed time.Duration) {
	if m == nil || r == nil {
		return
	}
	switch {
	case r.Err != "":
		m.Repositories.WithLabelValues("error").Inc()
		return
	case r.Cached:
		m.Repositories.WithLabelValues("cached").Inc()
	default:
		m.Repositories.WithLabelValues("scanned").Inc()
		m.FilesParsed.Add(float64(r.Files - r.ParseFailures))
		m.ParseFailures.Add(float64(r.ParseFailures))
		m.AnalysisSeconds.Observe(elapsed.Seconds())
	}
	for _, res := range r.Results {
		for _, f := range res.Findings {
			m.Findings.WithLabelValues(res.Detector, string(f.Kind)).Inc()
		}
	}
}

// WriteFile writes the metrics in the node-exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
