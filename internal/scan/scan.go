// Package scan runs every detector over one or more repositories.
//
// Repositories are processed sequentially; within a repository parsing is
// parallel. A failing repository or detector is recorded in the report and
// never aborts the run.
package scan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/phobologic/misfinder/internal/batch"
	"github.com/phobologic/misfinder/internal/cache"
	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/detect"
	"github.com/phobologic/misfinder/internal/discover"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/parse"
	"github.com/phobologic/misfinder/internal/provider"
	"github.com/phobologic/misfinder/internal/telemetry"
)

// Detectors returns the registered detectors in report order: the batch
// analysis first, then the pattern detectors.
func Detectors() []detect.Detector {
	return append([]detect.Detector{batch.Detector{}}, detect.Patterns()...)
}

// Runner holds everything a run shares. Config is required; every other
// field has a usable zero value.
type Runner struct {
	Config     *config.Config
	Logger     *slog.Logger
	Detectors  []detect.Detector   // nil selects Detectors()
	Classifier provider.Classifier // nil selects the import classifier
	Cache      *cache.Store        // nil disables caching
	Metrics    *telemetry.Metrics  // nil disables metrics
	Tracer     trace.Tracer        // nil disables tracing
	Workers    int                 // parse workers per repository; zero selects GOMAXPROCS

	// Version is mixed into cache keys so upgrades never serve stale reports.
	Version string
}

// Run scans repos in order and returns one report per repository.
func (r *Runner) Run(ctx context.Context, repos []string) []model.RepoReport {
	runID := uuid.NewString()
	logger := r.logger().With(slog.String("run", runID))
	logger.Info("scan started", slog.Int("repositories", len(repos)))

	reports := make([]model.RepoReport, 0, len(repos))
	for _, repo := range repos {
		start := time.Now()
		report := r.Repo(ctx, repo, logger.With(slog.String("repo", repo)))
		r.Metrics.ObserveReport(&report, time.Since(start))
		reports = append(reports, report)
	}

	logger.Info("scan finished", slog.Int("repositories", len(reports)))
	return reports
}

// Repo scans a single repository rooted at root.
func (r *Runner) Repo(ctx context.Context, root string, logger *slog.Logger) model.RepoReport {
	ctx, span := r.tracer().Start(ctx, "scan.repo", trace.WithAttributes(attribute.String("repo", root)))
	defer span.End()

	report := model.RepoReport{Repo: root, Provider: model.Unknown, Results: []model.Result{}}
	fail := func(err error) model.RepoReport {
		logger.Error("repository failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report.Err = err.Error()
		return report
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	sources, err := discover.Sources(root, discover.Options{
		SkipDirs:    r.Config.SkipDirs,
		MaxFileSize: r.Config.MaxFileSize,
		Logger:      logger,
	})
	if err != nil {
		return fail(fmt.Errorf("discovering files: %w", err))
	}
	report.Files = len(sources)
	span.SetAttributes(attribute.Int("files", len(sources)))

	var key string
	if r.Cache != nil {
		key = cache.Key(r.Version+"\x00"+r.Config.Digest(), sources)
		cached, ok, err := r.Cache.Get(key)
		switch {
		case err != nil:
			logger.Warn("cache read failed", slog.Any("error", err))
		case ok:
			logger.Debug("cache hit", slog.String("key", key))
			span.SetAttributes(attribute.Bool("cached", true))
			cached.Repo = root
			cached.Cached = true
			return *cached
		}
	}

	repository, err := parse.Build(ctx, sources, parse.Options{
		Workers:  r.Workers,
		MaxDepth: r.Config.MaxDepth,
		Logger:   logger,
	})
	if err != nil {
		return fail(fmt.Errorf("parsing: %w", err))
	}
	report.ParseFailures = len(repository.Failures)

	report.Provider = r.classifier().Classify(repository.Merged)
	logger.Info("repository parsed",
		slog.Int("files", len(repository.Files)),
		slog.Int("parse_failures", report.ParseFailures),
		slog.String("provider", string(report.Provider)))

	in := &detect.Input{
		Repo:     root,
		Tree:     repository.Merged,
		Files:    repository.Files,
		Provider: report.Provider,
		Config:   r.Config,
		Logger:   logger,
	}
	for _, d := range r.detectors() {
		report.Results = append(report.Results, r.detect(ctx, d, in, logger))
	}

	if r.Cache != nil && ctx.Err() == nil {
		if err := r.Cache.Put(key, &report); err != nil {
			logger.Warn("cache write failed", slog.Any("error", err))
		}
	}
	span.SetAttributes(attribute.Int("findings", report.Total()))
	return report
}

// detect runs one detector, turning an error or panic into a result note.
func (r *Runner) detect(ctx context.Context, d detect.Detector, in *detect.Input, logger *slog.Logger) (res model.Result) {
	ctx, span := r.tracer().Start(ctx, "detect "+d.Name())
	defer span.End()

	failed := func(err error) model.Result {
		logger.Error("detector failed", slog.String("detector", d.Name()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.Result{
			Detector: d.Name(),
			Findings: []model.Finding{},
			Notes:    []string{"detector failed: " + err.Error()},
		}
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Debug("detector panic", slog.String("stack", string(debug.Stack())))
			res = failed(fmt.Errorf("panic: %v", p))
		}
	}()

	out, err := d.Detect(ctx, in)
	if err != nil {
		return failed(err)
	}
	span.SetAttributes(attribute.Int("findings", out.Count))
	return *out
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer == nil {
		return noop.NewTracerProvider().Tracer(telemetry.ServiceName)
	}
	return r.Tracer
}

func (r *Runner) detectors() []detect.Detector {
	if r.Detectors == nil {
		return Detectors()
	}
	return r.Detectors
}

func (r *Runner) classifier() provider.Classifier {
	if r.Classifier == nil {
		return provider.NewImportClassifier(r.Config)
	}
	return r.Classifier
}

// ReadRepoList reads repository paths, one per line. Blank lines and lines
// starting with # are ignored.
func ReadRepoList(rd io.Reader) ([]string, error) {
	var repos []string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		repos = append(repos, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading repository list: %w", err)
	}
	return repos, nil
}
