package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/misfinder/internal/config"
)

const defaultConfigPath = ".misfinder.yaml"

// newInitCmd implements `misfinder init`, which writes the default
// configuration so it can be edited and passed back with --config.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a file",
		Long: `Write the default misfinder configuration (provider import keywords,
singular service tables, network methods, skip directories and limits) to a
YAML file. Edit it and pass it back with --config.

path defaults to ./` + defaultConfigPath + `. An existing file is left alone
unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args, dryRun, force, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the configuration instead of writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func runInit(args []string, dryRun, force bool, stdout, stderr io.Writer) error {
	data := config.DefaultYAML()

	if dryRun {
		_, err := stdout.Write(data)
		return err
	}

	path := defaultConfigPath
	if len(args) > 0 {
		path = args[0]
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote default configuration to %s\n", path)
	return nil
}
