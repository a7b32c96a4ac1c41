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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/affected"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/changeset"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/config"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/telemetry"
	"github.com/AleutianAI/affected-tests/pkg/ux"
)

// initTelemetry is swapped in tests.
var initTelemetry = telemetry.Init

// sourceFlags select the change set source. Shared by run and changes.
type sourceFlags struct {
	base  string
	head  string
	patch string
	files []string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.base, "base", "",
		"Base revision (default: <remote>/$GITHUB_BASE_REF in CI, trunk branch locally)")
	cmd.Flags().StringVar(&f.head, "head", "",
		"Head revision (default: $GITHUB_SHA in CI, current branch locally)")
	cmd.Flags().StringVar(&f.patch, "patch", "",
		"Read changed files from a unified diff instead of git (- for stdin)")
	cmd.Flags().StringSliceVar(&f.files, "files", nil,
		"Use this comma-separated list of changed files instead of git")
}

// provider builds the change set source. Revisions are only required for
// git, so a missing CI variable is not an error with --files or --patch.
func (f *sourceFlags) provider(a *app) (changeset.Provider, error) {
	opts := affected.ProviderOptions{
		Root:   a.root,
		Files:  f.files,
		Patch:  f.patch,
		Logger: a.logger.Slog(),
	}
	if len(f.files) == 0 && f.patch == "" {
		rev, err := a.cfg.Revisions(a.env, f.base, f.head)
		if err != nil {
			return nil, err
		}
		opts.Revisions = rev
		a.logger.Debug("diff revisions", "base", rev.Base, "head", headName(rev.Head))
	}
	return affected.NewProvider(opts)
}

func headName(head string) string {
	if head == "" {
		return "<current branch>"
	}
	return head
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

type runFlags struct {
	source        sourceFlags
	report        string
	metricsFile   string
	maxCandidates int
	workers       int
	json          bool
}

func newRunCmd(a *app) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Select affected tests and write the sentinel file",
		Long: `Select affected tests and write the sentinel file.

Sequence:
  1. delete the sentinel
  2. collect changed files
  3. no changes            -> empty sentinel
  4. override rule matches -> no sentinel (run all)
  5. otherwise             -> sentinel lists the selected tests, or is empty

Any error leaves the sentinel absent and exits 1.

Examples:
  affected-tests run
  affected-tests run --base origin/main --head HEAD
  affected-tests run --files ui/shared/Button.tsx,lib/format.ts
  gh pr diff 123 | affected-tests run --patch -
  affected-tests run --report out/affected.json --metrics-file out/affected.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, a, flags)
		},
	}
	flags.source.register(cmd)
	cmd.Flags().StringVar(&flags.report, "report", "",
		"Write a JSON report of every decision to this file")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "",
		"Write Prometheus metrics in textfile format (overrides telemetry.metrics_file)")
	cmd.Flags().IntVar(&flags.maxCandidates, "max-candidates", 0,
		"Analyze at most N candidates (0 = unlimited, overrides max_candidates)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0,
		"Concurrent closure builds (0 = GOMAXPROCS, overrides workers)")
	cmd.Flags().BoolVar(&flags.json, "json", false,
		"Print the report as JSON instead of text")
	return cmd
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runSelect(cmd *cobra.Command, a *app, flags *runFlags) error {
	ctx := cmd.Context()
	cfg := a.cfg
	if cmd.Flags().Changed("max-candidates") {
		cfg.MaxCandidates = flags.maxCandidates
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flags.workers
	}
	if err := cfg.Validate(); err != nil {
		a.clearStaleSentinels("")
		return err
	}

	shutdown, err := initTelemetry(ctx, telemetryConfig(cfg, a))
	if err != nil {
		a.clearStaleSentinels("")
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	provider, err := flags.source.provider(a)
	if err != nil {
		a.clearStaleSentinels("")
		return err
	}
	runner, err := affected.New(affected.Options{
		Root:     a.root,
		Config:   cfg,
		Provider: provider,
		Logger:   a.logger.Slog(),
	})
	if err != nil {
		a.clearStaleSentinels("")
		return err
	}

	report, runErr := runner.Run(ctx)

	metricsFile := firstNonEmpty(flags.metricsFile, cfg.Telemetry.MetricsFile)
	if metricsFile != "" {
		if err := telemetry.WriteMetricsFile(config.Abs(a.root, metricsFile), nil); err != nil {
			a.logger.Warn("failed to write metrics file", "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if flags.report != "" {
		if err := affected.WriteReport(config.Abs(a.root, flags.report), report); err != nil {
			return err
		}
	}

	if flags.json {
		data, err := report.MarshalIndent()
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}
	outputRunText(a.out, report)
	return nil
}

func telemetryConfig(cfg *config.Config, a *app) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.TraceExporter = cfg.Telemetry.TraceExporter
	tc.MetricExporter = cfg.Telemetry.MetricExporter
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	if a.env.CI {
		tc.Environment = "ci"
	}
	tc.Writer = a.stderr
	return tc
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputRunText(out *ux.Printer, r *affected.Report) {
	out.Title("Affected tests")
	out.Field("Decision", r.Decision)
	out.Field("Sentinel", fmt.Sprintf("%s (%s)", r.SentinelPath, sentinelMeaning(r.Sentinel)))
	out.Field("Changed files", fmt.Sprint(len(r.Changed)))

	if r.Override != nil && r.Override.Rule != "" {
		out.Warning(fmt.Sprintf("Override %s: %s", r.Override.Rule, r.Override.Reason))
	}
	if r.Candidates > 0 {
		out.Field("Candidates", fmt.Sprintf("%d (analyzed %d, over cap %d)", r.Candidates, r.Analyzed, r.Overflow))
	}
	if len(r.Selected) > 0 {
		out.Blank()
		out.Success(fmt.Sprintf("Selected tests (%d):", len(r.Selected)))
		out.List(r.Selected)
	}
	if len(r.Failures) > 0 {
		out.Blank()
		out.Warning("Selected because analysis failed:")
		out.List(r.Failures)
	}
	if len(r.Unresolved) > 0 {
		out.Blank()
		out.Muted(fmt.Sprintf("Unresolved imports: %d (see --report)", len(r.Unresolved)))
	}
}

func sentinelMeaning(state string) string {
	switch state {
	case "empty":
		return "empty: run no tests"
	case "specific":
		return "run listed tests"
	default:
		return "absent: run all tests"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
