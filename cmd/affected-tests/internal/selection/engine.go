// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package selection picks the candidate tests whose dependency closure
// intersects the change set.
//
// # Architecture
//
//	candidates (discovery order)
//	      │
//	      ▼
//	┌──────────────┐  beyond max_candidates   ┌────────────────────────┐
//	│   ApplyCap   │─────────────────────────▶│ overflow: select|skip  │
//	└──────┬───────┘                          └────────────────────────┘
//	       │ analyzed
//	       ▼
//	┌──────────────────────────────────┐
//	│ errgroup pool (SetLimit=workers) │  one closure per candidate,
//	│   BuildClosure → intersects?     │  results stored by index
//	└──────┬───────────────────────────┘
//	       ▼
//	Result: selected paths in discovery order
//
// A candidate whose closure fails (error or panic) is selected. Selection
// never drops a test it could not analyze.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/changeset"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/depgraph"
)

// CapOverflow is the policy for candidates beyond the cap.
type CapOverflow string

const (
	// OverflowSelect selects capped-out candidates without analysis.
	OverflowSelect CapOverflow = "select"

	// OverflowSkip drops capped-out candidates.
	OverflowSkip CapOverflow = "skip"
)

// Reasons reported on a CandidateDecision.
const (
	ReasonIntersects = "closure_intersects"
	ReasonDisjoint   = "closure_disjoint"
	ReasonError      = "closure_error"
	ReasonOverflow   = "cap_overflow"
	ReasonSkipped    = "cap_skipped"
)

// ClosureBuilder computes the closure of one file.
type ClosureBuilder interface {
	BuildClosure(ctx context.Context, entry string) (*depgraph.Closure, error)
}

// Options configures an Engine.
type Options struct {
	// Root is the absolute project root.
	Root string

	// Workers bounds concurrent closure builds. Default: GOMAXPROCS.
	Workers int

	// MaxCandidates caps analyzed candidates. 0 means unlimited.
	MaxCandidates int

	// Overflow handles candidates beyond MaxCandidates. Default: select.
	Overflow CapOverflow

	Logger *slog.Logger
}

// CandidateDecision explains the outcome for one candidate.
type CandidateDecision struct {
	Path     string `json:"path"`
	Selected bool   `json:"selected"`
	Reason   string `json:"reason"`

	// Matched are the changed files found in the closure.
	Matched []string `json:"matched,omitempty"`

	// ClosureSize is the number of files in the closure, 0 if not built.
	ClosureSize int `json:"closure_size,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of Select.
type Result struct {
	// Selected are root-relative slash paths in discovery order.
	Selected []string

	// Decisions has one entry per candidate, in discovery order.
	Decisions []CandidateDecision

	// Unresolved merges the unresolved specifiers of every closure.
	Unresolved []depgraph.UnresolvedDependency

	// Failures are the candidates selected because analysis failed.
	Failures []*CandidateError

	// Analyzed and Overflow count candidates inside and beyond the cap.
	Analyzed int
	Overflow int
}

// Engine runs test selection.
//
// # Thread Safety
//
// Engine is safe for concurrent use if its ClosureBuilder is.
type Engine struct {
	builder  ClosureBuilder
	root     string
	workers  int
	max      int
	overflow CapOverflow
	logger   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(builder ClosureBuilder, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	overflow := opts.Overflow
	if overflow == "" {
		overflow = OverflowSelect
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		builder:  builder,
		root:     filepath.Clean(opts.Root),
		workers:  workers,
		max:      opts.MaxCandidates,
		overflow: overflow,
		logger:   logger,
	}
}

// ApplyCap splits candidates at max. max <= 0 analyzes everything.
func ApplyCap(candidates []string, max int) (analyzed, overflow []string) {
	if max <= 0 || len(candidates) <= max {
		return candidates, nil
	}
	return candidates[:max], candidates[max:]
}

// outcome is the per-candidate result slot written by one worker.
type outcome struct {
	closure *depgraph.Closure
	err     error
}

// Select returns the candidates whose closure intersects cs.
//
// # Inputs
//
//   - ctx: Cancels the run. A canceled run returns ctx.Err() and no result.
//   - cs: The change set. Must be non-empty for a meaningful result.
//   - candidates: Absolute candidate paths in discovery order.
//
// # Outputs
//
//   - *Result: The selection.
//   - error: Only ctx.Err(); per-candidate failures are in Result.Failures.
func (e *Engine) Select(ctx context.Context, cs *changeset.ChangeSet, candidates []string) (*Result, error) {
	ctx, span := startSelectSpan(ctx, len(candidates), e.workers)
	defer span.End()
	start := time.Now()

	analyzed, overflow := ApplyCap(candidates, e.max)
	if len(overflow) > 0 {
		e.logger.Warn("candidate cap reached",
			slog.Int("max_candidates", e.max),
			slog.Int("overflow", len(overflow)),
			slog.String("cap_overflow", string(e.overflow)))
	}

	outcomes := make([]outcome, len(analyzed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, candidate := range analyzed {
		g.Go(func() error {
			outcomes[i].closure, outcomes[i].err = e.build(gctx, candidate)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &Result{
		Decisions: make([]CandidateDecision, 0, len(candidates)),
		Analyzed:  len(analyzed),
		Overflow:  len(overflow),
	}
	unresolved := make(map[depgraph.UnresolvedDependency]bool)

	for i, candidate := range analyzed {
		rel := e.relative(candidate)
		out := outcomes[i]
		if out.err != nil {
			candErr := &CandidateError{Path: rel, Err: out.err}
			result.Failures = append(result.Failures, candErr)
			result.Selected = append(result.Selected, rel)
			result.Decisions = append(result.Decisions, CandidateDecision{
				Path: rel, Selected: true, Reason: ReasonError, Error: out.err.Error(),
			})
			e.logger.Warn("closure failed, selecting candidate",
				slog.String("candidate", rel),
				slog.String("error", out.err.Error()))
			continue
		}

		for _, u := range out.closure.Unresolved {
			unresolved[u] = true
		}
		var matched []string
		for _, f := range out.closure.Files {
			if cs.Contains(f) {
				matched = append(matched, e.relative(f))
			}
		}
		d := CandidateDecision{Path: rel, ClosureSize: len(out.closure.Files), Matched: matched}
		if len(matched) > 0 {
			d.Selected = true
			d.Reason = ReasonIntersects
			result.Selected = append(result.Selected, rel)
		} else {
			d.Reason = ReasonDisjoint
		}
		result.Decisions = append(result.Decisions, d)
	}

	for _, candidate := range overflow {
		rel := e.relative(candidate)
		if e.overflow == OverflowSkip {
			result.Decisions = append(result.Decisions, CandidateDecision{Path: rel, Reason: ReasonSkipped})
			continue
		}
		result.Selected = append(result.Selected, rel)
		result.Decisions = append(result.Decisions, CandidateDecision{Path: rel, Selected: true, Reason: ReasonOverflow})
	}

	for u := range unresolved {
		result.Unresolved = append(result.Unresolved, u)
	}
	sort.Slice(result.Unresolved, func(i, j int) bool {
		a, b := result.Unresolved[i], result.Unresolved[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.Specifier < b.Specifier
	})

	setSelectSpanResult(span, len(result.Selected), len(result.Failures))
	recordSelectMetrics(ctx, time.Since(start), result)
	return result, nil
}

// build computes one closure, converting a panic or a missing closure
// into an error.
func (e *Engine) build(ctx context.Context, candidate string) (closure *depgraph.Closure, err error) {
	defer func() {
		if r := recover(); r != nil {
			closure = nil
			err = fmt.Errorf("%w: %v", ErrCandidatePanic, r)
		}
	}()
	closure, err = e.builder.BuildClosure(ctx, candidate)
	if err == nil && closure == nil {
		err = ErrNilClosure
	}
	return closure, err
}

func (e *Engine) relative(path string) string {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
