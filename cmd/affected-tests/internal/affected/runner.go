// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package affected

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/changeset"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/config"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/depgraph"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/imports"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/override"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/resolve"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/selection"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/sentinel"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/telemetry"
)

// Decisions reported by a run.
const (
	DecisionNoChanges    = "no_changes"
	DecisionRunAll       = "run_all"
	DecisionSelected     = "selected"
	DecisionNoneSelected = "none_selected"
)

// Options configures a Runner.
type Options struct {
	// Root is the project root. Symlinks are evaluated once.
	Root string

	// Config is the effective configuration. Default: config.Default().
	Config *config.Config

	// Provider is the change set source. Required.
	Provider changeset.Provider

	Logger *slog.Logger
}

// Runner executes the selection sequence against one project.
//
// # Thread Safety
//
// A Runner owns its sentinel file. Do not call Run concurrently.
type Runner struct {
	root     string
	cfg      *config.Config
	provider changeset.Provider
	policy   *override.Policy
	engine   *selection.Engine
	sink     *sentinel.Sink
	discover selection.DiscoverOptions
	logger   *slog.Logger
}

// ResolveRoot returns root as a clean absolute path with symlinks
// evaluated. Change sets and closures are compared against this form.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", root, err)
	}
	return resolved, nil
}

// NewIndexer builds the closure indexer for root from cfg. The resolver's
// stat cache lives as long as the returned indexer.
func NewIndexer(root string, cfg *config.Config, logger *slog.Logger) (*depgraph.Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	resolveOpts := cfg.ResolveOptions(root)
	resolveOpts.Logger = logger
	resolver, err := resolve.New(resolveOpts)
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}
	scanner := imports.NewScanner(imports.WithLogger(logger))
	return depgraph.NewIndexer(scanner, resolver, depgraph.WithLogger(logger)), nil
}

// New creates a Runner.
//
// # Outputs
//
//   - *Runner: Ready to Run.
//   - error: ErrNoProvider, a root error, or a tsconfig error.
func New(opts Options) (*Runner, error) {
	if opts.Provider == nil {
		return nil, ErrNoProvider
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, err := ResolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}

	indexer, err := NewIndexer(root, cfg, logger)
	if err != nil {
		return nil, err
	}
	selectOpts := cfg.SelectionOptions(root)
	selectOpts.Logger = logger
	discover := cfg.DiscoverOptions(root)
	discover.Logger = logger

	return &Runner{
		root:     root,
		cfg:      cfg,
		provider: opts.Provider,
		policy:   override.NewPolicy(cfg.Overrides.Rules()),
		engine:   selection.NewEngine(indexer, selectOpts),
		sink:     sentinel.NewSink(config.Abs(root, cfg.SentinelPath)),
		discover: discover,
		logger:   logger,
	}, nil
}

// Root returns the resolved project root.
func (r *Runner) Root() string {
	return r.root
}

// Sink returns the sentinel sink.
func (r *Runner) Sink() *sentinel.Sink {
	return r.sink
}

// Run executes one selection and writes the sentinel.
//
// # Description
//
//  1. Delete the sentinel. Failure is logged, not fatal.
//  2. Acquire the change set. Failure is fatal.
//  3. Empty change set: write an empty sentinel.
//  4. Override policy says run all: leave the sentinel absent.
//  5. Discover candidates and select; write the selection, or an empty
//     sentinel when nothing was selected.
//
// # Outputs
//
//   - *Report: What was decided and why. Nil on error.
//   - error: Fatal failure. The sentinel is absent.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := startRunSpan(ctx, runID, r.root)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, r.logger.With(slog.String("run_id", runID)))

	report := &Report{
		RunID:        runID,
		Root:         r.root,
		SentinelPath: r.relative(r.sink.Path()),
		StartedAt:    start.UTC(),
	}

	if err := r.sink.Clear(); err != nil {
		logger.Warn("failed to clear sentinel", slog.String("error", err.Error()))
	}

	finish, err := r.decide(ctx, logger, report)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		telemetry.RecordError(span, err)
		recordRun(ctx, "error", time.Since(start), 0)
		return nil, err
	}

	if finish.State != sentinel.Unspecified {
		if err := r.sink.Write(finish); err != nil {
			telemetry.RecordError(span, err)
			recordRun(ctx, "error", time.Since(start), 0)
			return nil, fmt.Errorf("writing sentinel: %w", err)
		}
	}

	report.Sentinel = finish.State.String()
	report.DurationMS = time.Since(start).Milliseconds()
	setRunSpanResult(span, report)
	recordRun(ctx, report.Decision, time.Since(start), len(report.Selected))

	logger.Info("selection complete",
		slog.String("decision", report.Decision),
		slog.String("sentinel", report.Sentinel),
		slog.Int("changed", len(report.Changed)),
		slog.Int("selected", len(report.Selected)),
		slog.Int64("duration_ms", report.DurationMS))
	return report, nil
}

// decide runs steps 2 to 5 and returns the sentinel content.
func (r *Runner) decide(ctx context.Context, logger *slog.Logger, report *Report) (sentinel.Result, error) {
	cs, err := r.provider.ChangedFiles(ctx)
	if err != nil {
		return sentinel.Result{}, fmt.Errorf("acquiring change set: %w", err)
	}
	report.Changed = cs.Relative()
	logger.Info("change set acquired", slog.Int("files", cs.Len()))

	if cs.IsEmpty() {
		report.Decision = DecisionNoChanges
		return sentinel.None(), nil
	}

	decision := r.policy.Decide(cs)
	report.Override = &decision
	if decision.Action == override.RunAll {
		logger.Info("override triggered, running all tests",
			slog.String("rule", decision.Rule),
			slog.String("reason", decision.Reason))
		report.Decision = DecisionRunAll
		return sentinel.RunAll(), nil
	}

	candidates, err := selection.Discover(ctx, r.discover)
	if err != nil {
		return sentinel.Result{}, fmt.Errorf("discovering tests: %w", err)
	}
	report.Candidates = len(candidates)

	result, err := r.engine.Select(ctx, cs, candidates)
	if err != nil {
		return sentinel.Result{}, fmt.Errorf("selecting tests: %w", err)
	}
	report.Selected = result.Selected
	report.Analyzed = result.Analyzed
	report.Overflow = result.Overflow
	report.Decisions = result.Decisions
	report.Unresolved = result.Unresolved
	for _, f := range result.Failures {
		report.Failures = append(report.Failures, f.Error())
	}
	if len(result.Unresolved) > 0 {
		logger.Warn("unresolved imports", slog.Int("count", len(result.Unresolved)))
	}

	if len(result.Selected) == 0 {
		report.Decision = DecisionNoneSelected
		return sentinel.None(), nil
	}
	report.Decision = DecisionSelected
	return sentinel.Tests(result.Selected), nil
}

func (r *Runner) relative(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// ProviderOptions selects the change set source.
type ProviderOptions struct {
	Root string

	// Files is an explicit list of changed files, relative to Root.
	Files []string

	// Patch is a unified diff file. "-" reads standard input.
	Patch string

	// Revisions are used for the git provider.
	Revisions config.Revisions

	Logger *slog.Logger
}

// NewProvider returns the change set source for opts: a static list when
// Files is set, a patch when Patch is set, git otherwise.
func NewProvider(opts ProviderOptions) (changeset.Provider, error) {
	switch {
	case len(opts.Files) > 0 && opts.Patch != "":
		return nil, ErrConflictingSources
	case len(opts.Files) > 0:
		return changeset.StaticProvider{Root: opts.Root, Files: opts.Files}, nil
	case opts.Patch == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading patch from stdin: %w", err)
		}
		return changeset.PatchProvider{Root: opts.Root, Path: "-", Data: data}, nil
	case opts.Patch != "":
		return changeset.PatchProvider{Root: opts.Root, Path: opts.Patch}, nil
	}

	gitOpts := []changeset.GitOption{
		changeset.WithRevisions(opts.Revisions.Base, opts.Revisions.Head),
	}
	if opts.Logger != nil {
		gitOpts = append(gitOpts, changeset.WithGitLogger(opts.Logger))
	}
	return changeset.NewGitProvider(opts.Root, gitOpts...), nil
}
