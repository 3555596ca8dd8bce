package parse

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/misfinder/internal/lang"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

// FileTree is the parsed tree of a single file.
type FileTree struct {
	Path string
	Tree *tree.Tree
}

// Repository is the build-once result of parsing every file of a repository.
// Files keeps the input order; Merged is read-only after Build returns.
type Repository struct {
	Files    []FileTree
	Merged   *tree.Tree
	Failures []*ParseFailure
}

// Options controls Build.
type Options struct {
	// Workers bounds parallel parsing. Zero selects GOMAXPROCS.
	Workers  int
	MaxDepth int
	Logger   *slog.Logger
}

// Build parses every source, skipping files that fail with a logged
// diagnostic, then merges the surviving trees in input order. Parsing runs on
// a bounded worker pool; merging happens only after every worker is done.
func Build(ctx context.Context, sources []model.SourceFile, opts Options) (*Repository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(sources) {
		numWorkers = len(sources)
	}

	trees := make([]*tree.Tree, len(sources))
	failures := make([]*ParseFailure, len(sources))

	work := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(work)
		for i := range sources {
			select {
			case work <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range numWorkers {
		g.Go(func() error {
			// Each goroutine gets its own parsers
			parsers := make(map[string]*Parser)
			for idx := range work {
				src := sources[idx]
				name := lang.ForExtension(filepath.Ext(src.Path))
				if name == "" {
					failures[idx] = &ParseFailure{Path: src.Path, Err: errUnsupported}
					continue
				}
				p, ok := parsers[name]
				if !ok {
					p = NewParser(lang.Languages[name], opts.MaxDepth)
					parsers[name] = p
				}
				t, err := p.Parse(gctx, src)
				if err != nil {
					var pf *ParseFailure
					if !errors.As(err, &pf) {
						pf = &ParseFailure{Path: src.Path, Err: err}
					}
					failures[idx] = pf
					continue
				}
				trees[idx] = t
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	repo := &Repository{}
	var ok []*tree.Tree
	for i, t := range trees {
		if f := failures[i]; f != nil {
			logger.Warn("skipping file", slog.String("file", f.Path), slog.Any("error", f))
			repo.Failures = append(repo.Failures, f)
			continue
		}
		repo.Files = append(repo.Files, FileTree{Path: sources[i].Path, Tree: t})
		ok = append(ok, t)
	}
	repo.Merged = tree.Merge(ok)
	return repo, nil
}

var errUnsupported = errors.New("unsupported file type")
