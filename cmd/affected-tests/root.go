// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/affected"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/config"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/sentinel"
	"github.com/AleutianAI/affected-tests/pkg/logging"
	"github.com/AleutianAI/affected-tests/pkg/ux"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	root     string
	config   string
	envFile  string
	logLevel string
	logJSON  bool
	logDir   string
	output   string
}

// app is the per-invocation state built before a command runs.
type app struct {
	root   string
	cfg    *config.Config
	env    config.Environment
	logger *logging.Logger
	out    *ux.Printer
	stdout io.Writer
	stderr io.Writer
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

func newRootCmd(state *app) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "affected-tests",
		Short: "Select the end-to-end tests affected by a change",
		Long: `Select the end-to-end tests affected by a change.

affected-tests diffs the current change, follows the static imports of every
candidate test and writes the tests that can observe the change to a sentinel
file read by the test runner:

  absent     run every test (the safe default on any failure)
  empty      run no tests
  non-empty  run the listed tests

Changes that static analysis cannot scope (global theme, icon sprites, or
configured files) force a full run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := state.setup(flags, cmd.Flags().Changed("env-file"))
			if err != nil && cmd.Name() == "run" {
				state.clearStaleSentinels(flags.config)
			}
			return err
		},
	}
	root.SetOut(state.stdout)
	root.SetErr(state.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.root, "root", ".", "Project root")
	pf.StringVar(&flags.config, "config", "", "Configuration file (default: <root>/"+config.FileName+")")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Env file loaded before reading CI variables; never overrides the environment")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "Log as JSON")
	pf.StringVar(&flags.logDir, "log-dir", "", "Also append JSON logs to a file in this directory")
	pf.StringVar(&flags.output, "output", "standard", "Text output style: standard or machine")

	root.AddCommand(
		newRunCmd(state),
		newClosureCmd(state),
		newChangesCmd(state),
		newStatusCmd(state),
		newConfigCmd(state),
	)
	return root
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	state := &app{stdout: stdout, stderr: stderr}
	defer state.close()

	cmd := newRootCmd(state)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// setup resolves the root, builds the logger and output printer, then
// loads the environment and configuration. The root comes first so that
// a later failure still knows where the sentinel lives. An explicit
// --env-file must exist.
func (a *app) setup(flags *globalFlags, envFileRequired bool) error {
	root, err := affected.ResolveRoot(flags.root)
	if err != nil {
		return err
	}
	a.root = root

	level, err := logging.ParseLevel(flags.logLevel)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		JSON:    flags.logJSON,
		LogDir:  flags.logDir,
		Service: "affected-tests",
		Writer:  a.stderr,
	})

	mode, err := ux.ParseMode(flags.output)
	if err != nil {
		return err
	}
	a.out = ux.NewPrinter(a.stdout, mode)

	envFile := flags.envFile
	if envFile != "" && !filepath.IsAbs(envFile) {
		envFile = filepath.Join(root, envFile)
	}
	if err := config.LoadEnvFile(envFile, envFileRequired); err != nil {
		return err
	}
	a.env = config.EnvironmentFromOS()

	cfg, err := config.Load(flags.config, root)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger.Debug("configuration loaded",
		"root", root,
		"source", sourceName(cfg),
		"ci", a.env.CI)
	return nil
}

// clearStaleSentinels deletes the sentinel a failed run could have left
// behind, so the test runner falls back to running every test. Once the
// configuration is loaded only its sentinel is cleared. Before that both
// the default path and the sentinel_path of the configuration file are
// cleared, the latter even when the file is invalid. Nothing is cleared
// when the root itself could not be resolved.
func (a *app) clearStaleSentinels(configPath string) {
	if a.root == "" {
		return
	}
	var paths []string
	if a.cfg != nil {
		paths = []string{a.cfg.SentinelPath}
	} else {
		paths = []string{sentinel.DefaultPath, config.PeekSentinelPath(configPath, a.root)}
	}
	seen := make(map[string]bool, len(paths))
	for _, rel := range paths {
		if rel == "" {
			continue
		}
		abs := config.Abs(a.root, rel)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		if err := sentinel.NewSink(abs).Clear(); err != nil && a.logger != nil {
			a.logger.Warn("failed to clear sentinel", "path", abs, "error", err)
		}
	}
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func sourceName(cfg *config.Config) string {
	if cfg.Source == "" {
		return "defaults"
	}
	return cfg.Source
}
