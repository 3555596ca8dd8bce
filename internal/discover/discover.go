// Package discover finds and reads the source files of a repository.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/misfinder/internal/lang"
	"github.com/phobologic/misfinder/internal/model"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to repo root
	Language string
	Size     int64
}

// Options controls discovery.
type Options struct {
	// SkipDirs are directory names never descended into. Hidden directories
	// are always skipped.
	SkipDirs []string

	// MaxFileSize skips larger files when reading. Zero means no limit.
	MaxFileSize int64

	Logger *slog.Logger
}

// Files discovers parseable source files under root, sorted by path.
// Inside a git work tree only tracked and unignored files are returned;
// otherwise a top-level .gitignore is honoured.
func Files(root string, opts Options) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("repository root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root %s is not a directory", root)
	}

	skipDirs := make(map[string]struct{}, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skipDirs[d] = struct{}{}
	}
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}

		var size int64
		if fi, err := d.Info(); err == nil {
			size = fi.Size()
		}
		results = append(results, FileEntry{Path: rel, Language: langName, Size: size})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Read loads the contents of entries. Oversized and unreadable files are
// logged and skipped.
func Read(root string, entries []FileEntry, opts Options) []model.SourceFile {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sources := make([]model.SourceFile, 0, len(entries))
	for _, e := range entries {
		if opts.MaxFileSize > 0 && e.Size > opts.MaxFileSize {
			logger.Warn("skipping oversized file", slog.String("file", e.Path), slog.Int64("size", e.Size))
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, e.Path))
		if err != nil {
			logger.Warn("skipping unreadable file", slog.String("file", e.Path), slog.Any("error", err))
			continue
		}
		sources = append(sources, model.SourceFile{Path: filepath.ToSlash(e.Path), Text: data})
	}
	return sources
}

// Sources discovers and reads every source file under root.
func Sources(root string, opts Options) ([]model.SourceFile, error) {
	entries, err := Files(root, opts)
	if err != nil {
		return nil, err
	}
	return Read(root, entries, opts), nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
