// misfinder scans Python repositories for cloud ML SDK misuse.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phobologic/misfinder/internal/cache"
	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/ranking"
	"github.com/phobologic/misfinder/internal/scan"
	"github.com/phobologic/misfinder/internal/telemetry"
	"github.com/phobologic/misfinder/internal/toon"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	reposFile   string
	configPath  string
	format      string
	maxFindings int
	file        string
	kinds       []string
	cacheDir    string
	metricsFile string
	trace       bool
	verbose     bool
	jobs        int
	showVersion bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "misfinder [flags] [repo...]",
		Short: "Find cloud ML SDK misuse in Python repositories",
		Long: `misfinder scans Python repositories for cloud machine-learning SDK
anti-patterns: per-item API calls inside loops (directly or through any chain
of helper functions), missing early stopping, drift monitoring, checkpointing,
schema checks and rate-limit monitoring, and misread sentiment results.

Each argument is a repository root; with none, the current directory is
scanned. One report row is produced per repository.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				_, _ = fmt.Fprintf(stdout, "misfinder %s\n", version)
				return nil
			}
			return scanRepos(cmd.Context(), &opts, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.reposFile, "repos-file", "", "file listing repository paths, one per line")
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration overriding the defaults")
	f.StringVarP(&opts.format, "format", "f", "toon", "output format: toon or json")
	f.IntVarP(&opts.maxFindings, "max-findings", "n", 0, "maximum findings shown per repository")
	f.StringVar(&opts.file, "file", "", "only show findings in files whose path contains this substring")
	f.StringSliceVar(&opts.kinds, "kind", nil, "only show findings of these kinds")
	f.StringVar(&opts.cacheDir, "cache", "", "directory for the report cache")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile")
	f.BoolVar(&opts.trace, "trace", false, "print trace spans to stderr")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	f.IntVarP(&opts.jobs, "jobs", "j", 0, "parse workers per repository (default GOMAXPROCS)")
	f.BoolVarP(&opts.showVersion, "version", "V", false, "show version and exit")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

func scanRepos(ctx context.Context, opts *options, args []string, stdout, stderr io.Writer) error {
	if opts.format != "toon" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}
	kinds, err := parseKinds(opts.kinds)
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(stderr, opts.verbose)

	cfg := config.Default()
	if opts.configPath != "" {
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}

	repos, err := repoList(args, opts.reposFile)
	if err != nil {
		return err
	}

	tracer, shutdown, err := telemetry.NewTracer(stderr, version, opts.trace)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("trace shutdown failed", slog.Any("error", err))
		}
	}()

	runner := &scan.Runner{
		Config:  cfg,
		Logger:  logger,
		Tracer:  tracer,
		Workers: opts.jobs,
		Version: version,
	}
	if opts.metricsFile != "" {
		runner.Metrics = telemetry.NewMetrics()
	}
	if opts.cacheDir != "" {
		store, err := cache.Open(opts.cacheDir, logger.With(slog.String("component", "cache")))
		if err != nil {
			return err
		}
		defer store.Close()
		runner.Cache = store
	}

	reports := runner.Run(ctx, repos)

	for i := range reports {
		rep := &reports[i]
		if opts.file != "" {
			rep = ranking.FilterByFile(rep, opts.file)
		}
		if len(kinds) > 0 {
			rep = ranking.FilterByKind(rep, kinds)
		}
		reports[i] = *ranking.SelectFindings(rep, opts.maxFindings)
	}

	if err := runner.Metrics.WriteFile(opts.metricsFile); err != nil {
		logger.Warn("metrics not written", slog.Any("error", err))
	}

	return writeReports(stdout, opts.format, reports)
}

func writeReports(w io.Writer, format string, reports []model.RepoReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	_, err := fmt.Fprintln(w, toon.Encode(reports))
	return err
}

// repoList resolves the repositories to scan from positional arguments and
// an optional list file. With neither, the working directory is scanned.
func repoList(args []string, reposFile string) ([]string, error) {
	repos := append([]string(nil), args...)
	if reposFile != "" {
		f, err := os.Open(reposFile)
		if err != nil {
			return nil, fmt.Errorf("opening repository list: %w", err)
		}
		defer f.Close()
		listed, err := scan.ReadRepoList(f)
		if err != nil {
			return nil, err
		}
		base := filepath.Dir(reposFile)
		for _, r := range listed {
			if !filepath.IsAbs(r) {
				r = filepath.Join(base, r)
			}
			repos = append(repos, r)
		}
		if len(repos) == 0 {
			return nil, errors.New("repository list is empty")
		}
	}
	if len(repos) == 0 {
		repos = []string{"."}
	}
	return repos, nil
}

func parseKinds(names []string) ([]model.FindingKind, error) {
	known := map[model.FindingKind]struct{}{}
	for _, k := range model.FindingKinds() {
		known[k] = struct{}{}
	}
	kinds := make([]model.FindingKind, 0, len(names))
	for _, name := range names {
		k := model.FindingKind(name)
		if _, ok := known[k]; !ok {
			return nil, fmt.Errorf("unknown finding kind %q", name)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
