// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changeset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DetachedHead is used as the head revision when no branch is checked out.
const DetachedHead = "HEAD"

// GitProvider queries git for the files changed between two revisions.
//
// # Description
//
// One `git diff --name-only` is issued per call, in the project root.
// Renames are split into delete+add so both the old and the new path are
// reported, and paths are printed relative to the root.
//
// # Thread Safety
//
// GitProvider is safe for concurrent use.
type GitProvider struct {
	root   string
	base   string
	head   string
	binary string
	logger *slog.Logger
}

// GitOption configures a GitProvider.
type GitOption func(*GitProvider)

// WithRevisions sets the base and head revisions used by ChangedFiles.
// An empty head means "the current branch".
func WithRevisions(base, head string) GitOption {
	return func(g *GitProvider) {
		g.base = base
		g.head = head
	}
}

// WithGitBinary overrides the git executable. Default: "git".
func WithGitBinary(path string) GitOption {
	return func(g *GitProvider) {
		g.binary = path
	}
}

// WithGitLogger sets the logger. Default: slog.Default().
func WithGitLogger(logger *slog.Logger) GitOption {
	return func(g *GitProvider) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGitProvider creates a GitProvider for the repository at root.
//
// # Inputs
//
//   - root: Project root. Git runs with this as its working directory.
//   - opts: Optional configuration.
//
// # Outputs
//
//   - *GitProvider: The provider.
func NewGitProvider(root string, opts ...GitOption) *GitProvider {
	g := &GitProvider{
		root:   root,
		binary: "git",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ChangedFiles implements Provider using the configured revisions.
func (g *GitProvider) ChangedFiles(ctx context.Context) (*ChangeSet, error) {
	head := g.head
	if head == "" {
		branch, err := g.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
		head = branch
	}
	return g.GetChangedFiles(ctx, g.base, head)
}

// GetChangedFiles returns the files that differ between base and head.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - base: Base revision, e.g. "origin/main".
//   - head: Head revision, e.g. a commit SHA or branch name.
//
// # Outputs
//
//   - *ChangeSet: Changed files as absolute paths. Empty if nothing changed.
//   - error: *ExecutionError if git failed, ErrEmptyRevision on bad input.
func (g *GitProvider) GetChangedFiles(ctx context.Context, base, head string) (*ChangeSet, error) {
	if base == "" || head == "" {
		return nil, fmt.Errorf("base %q, head %q: %w", base, head, ErrEmptyRevision)
	}

	ctx, span := startDiffSpan(ctx, base, head)
	defer span.End()

	start := time.Now()
	out, err := g.run(ctx, "-c", "core.quotePath=false", "diff", "--name-only", "--no-renames", "--relative", base, head, "--", ".")
	if err != nil {
		recordDiffMetrics(ctx, time.Since(start), -1, false)
		span.RecordError(err)
		return nil, err
	}

	cs := New(g.root)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		cs.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing git output: %w", err)
	}

	setDiffSpanResult(span, cs.Len())
	recordDiffMetrics(ctx, time.Since(start), cs.Len(), true)
	g.logger.Debug("git diff complete",
		slog.String("base", base),
		slog.String("head", head),
		slog.Int("files", cs.Len()))
	return cs, nil
}

// CurrentBranch returns the checked-out branch name, or DetachedHead when
// HEAD is detached.
func (g *GitProvider) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" {
		return DetachedHead, nil
	}
	return branch, nil
}

// IsGitRepo reports whether the root is inside a git work tree.
func (g *GitProvider) IsGitRepo(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// run executes git in the root and returns stdout.
func (g *GitProvider) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = g.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		return nil, &ExecutionError{
			Command:  g.binary + " " + strings.Join(args, " "),
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Wrapped:  err,
		}
	}
	return stdout.Bytes(), nil
}
