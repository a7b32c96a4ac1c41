// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discovery defaults.
const (
	DefaultTestRoot = "ui/shared"
	DefaultPattern  = "**/*.pw.tsx"
)

// DiscoverOptions configures Discover.
type DiscoverOptions struct {
	// Root is the absolute project root.
	Root string

	// TestRoots are root-relative directories to search, in order.
	TestRoots []string

	// Pattern is a doublestar glob matched against paths relative to
	// each test root.
	Pattern string

	Logger *slog.Logger
}

// Discover lists candidate test files.
//
// # Description
//
// Each test root is walked in lexical order. node_modules and
// dot-directories are skipped. A missing test root contributes nothing.
//
// # Outputs
//
//   - []string: Unique absolute paths in scan order.
//   - error: ErrInvalidPattern, a walk error, or ctx.Err().
func Discover(ctx context.Context, opts DiscoverOptions) ([]string, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	roots := opts.TestRoots
	if len(roots) == 0 {
		roots = []string{DefaultTestRoot}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]bool)
	var out []string
	for _, testRoot := range roots {
		dir := filepath.Join(opts.Root, filepath.FromSlash(testRoot))
		info, err := os.Stat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("test root not found", slog.String("dir", testRoot))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat test root %s: %w", testRoot, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("test root %s is not a directory", testRoot)
		}

		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
			}
			if ok && !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discovering tests in %s: %w", testRoot, err)
		}
	}
	return out, nil
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}
