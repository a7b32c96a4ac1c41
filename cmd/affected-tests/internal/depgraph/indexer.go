// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/imports"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/resolve"
)

// ImportSource extracts the import specifiers of a file.
type ImportSource interface {
	// Supports reports whether the file can have imports at all.
	Supports(path string) bool

	// ScanFile returns the file's unique specifiers.
	ScanFile(ctx context.Context, path string) ([]imports.Import, error)
}

// UnresolvedDependency is a specifier that resolved to nothing.
type UnresolvedDependency struct {
	// From is the absolute path of the importing file.
	From string `json:"from"`

	// Specifier is the literal import string.
	Specifier string `json:"specifier"`
}

// Closure is the set of project files reachable from Entry.
type Closure struct {
	// Entry is the absolute path the walk started from.
	Entry string

	// Files is sorted and always contains Entry.
	Files []string

	// Unresolved is sorted by From, then Specifier.
	Unresolved []UnresolvedDependency
}

// Contains reports whether path is in the closure.
func (c *Closure) Contains(path string) bool {
	i := sort.SearchStrings(c.Files, path)
	return i < len(c.Files) && c.Files[i] == path
}

// Intersects reports whether any closure file satisfies contains.
func (c *Closure) Intersects(contains func(string) bool) bool {
	for _, f := range c.Files {
		if contains(f) {
			return true
		}
	}
	return false
}

// Indexer builds dependency closures.
//
// # Thread Safety
//
// Indexer is safe for concurrent use if its ImportSource and Resolver are.
// Each BuildClosure call keeps its own visited set and results.
type Indexer struct {
	source   ImportSource
	resolver resolve.Resolver
	logger   *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) IndexerOption {
	return func(i *Indexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIndexer creates an Indexer.
func NewIndexer(source ImportSource, resolver resolve.Resolver, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		source:   source,
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// BuildClosure computes the transitive closure of entry.
//
// # Inputs
//
//   - ctx: Context for cancellation. Checked before every file.
//   - entry: Path of the entry file; made absolute and cleaned.
//
// # Outputs
//
//   - *Closure: The closure. Never nil when err is nil.
//   - error: Non-nil if any reachable file cannot be read or scanned, or
//     ctx is canceled.
//
// # Limitations
//
//   - Only literal specifiers are followed. Computed dynamic imports are
//     invisible, so a closure can miss files loaded that way.
func (idx *Indexer) BuildClosure(ctx context.Context, entry string) (*Closure, error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("absolute path for %s: %w", entry, err)
	}
	abs = filepath.Clean(abs)

	ctx, span := startClosureSpan(ctx, abs)
	defer span.End()
	start := time.Now()

	visited := map[string]bool{abs: true}
	stack := []string{abs}
	var unresolved []UnresolvedDependency

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !idx.source.Supports(file) {
			continue
		}
		found, err := idx.source.ScanFile(ctx, file)
		if err != nil {
			span.RecordError(err)
			recordClosureMetrics(ctx, time.Since(start), 0, 0, false)
			return nil, fmt.Errorf("closure of %s: %w", abs, err)
		}

		// Reverse order so the first import is explored first.
		for i := len(found) - 1; i >= 0; i-- {
			spec := found[i].Specifier
			res := idx.resolver.Resolve(spec, file)
			switch res.Status {
			case resolve.Internal:
				if !visited[res.Path] {
					visited[res.Path] = true
					stack = append(stack, res.Path)
				}
			case resolve.Unresolved:
				unresolved = append(unresolved, UnresolvedDependency{From: file, Specifier: spec})
			}
		}
	}

	files := make([]string, 0, len(visited))
	for f := range visited {
		files = append(files, f)
	}
	sort.Strings(files)
	sort.Slice(unresolved, func(i, j int) bool {
		if unresolved[i].From != unresolved[j].From {
			return unresolved[i].From < unresolved[j].From
		}
		return unresolved[i].Specifier < unresolved[j].Specifier
	})

	setClosureSpanResult(span, len(files), len(unresolved))
	recordClosureMetrics(ctx, time.Since(start), len(files), len(unresolved), true)
	idx.logger.Debug("closure built",
		slog.String("entry", abs),
		slog.Int("files", len(files)),
		slog.Int("unresolved", len(unresolved)))

	return &Closure{Entry: abs, Files: files, Unresolved: unresolved}, nil
}
