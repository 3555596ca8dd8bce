package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/misfinder/internal/config"
)

// TestInitCreatesFile verifies that init writes the default configuration
// when the target does not exist.
func TestInitCreatesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "misfinder.yaml")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"init", path}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if !bytes.Equal(data, config.DefaultYAML()) {
		t.Error("written file should match the embedded defaults")
	}
	if !strings.Contains(stderr.String(), "wrote default configuration") {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
}

// TestInitOutputLoads verifies that the written file is accepted by --config.
func TestInitOutputLoads(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "misfinder.yaml")

	var buf bytes.Buffer
	if err := run(context.Background(), []string{"init", path}, &buf, &buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Digest() != config.Default().Digest() {
		t.Error("loaded configuration differs from the defaults")
	}
}

// TestInitDryRun verifies that --dry-run prints the configuration and does
// not create the target file.
func TestInitDryRun(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "misfinder.yaml")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"init", "--dry-run", path}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, err := os.Stat(path); err == nil {
		t.Error("--dry-run should not create the file")
	}
	if !strings.Contains(stdout.String(), "network_methods:") {
		t.Errorf("dry-run output missing configuration:\n%s", stdout.String())
	}
}

// TestInitRefusesOverwrite verifies that an existing file is left alone
// unless --force is given.
func TestInitRefusesOverwrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "misfinder.yaml")
	existing := "max_depth: 50\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err := run(context.Background(), []string{"init", path}, &buf, &buf)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected an already-exists error, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != existing {
		t.Error("existing file must not be modified")
	}

	if err := run(context.Background(), []string{"init", "--force", path}, &buf, &buf); err != nil {
		t.Fatalf("init --force: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !bytes.Equal(data, config.DefaultYAML()) {
		t.Error("--force should overwrite the file")
	}
}

// TestInitTooManyArgs verifies that init accepts at most one path.
func TestInitTooManyArgs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := run(context.Background(), []string{"init", "a.yaml", "b.yaml"}, &buf, &buf); err == nil {
		t.Error("expected an error for two paths")
	}
}
