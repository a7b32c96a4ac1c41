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
	"path/filepath"
	"sort"
	"strings"
)

// ChangeSet is the set of changed files of one run.
//
// Paths are stored as cleaned absolute paths. Paths outside the root are
// dropped on insertion. The zero value is not usable; call New.
//
// # Thread Safety
//
// A ChangeSet is built by one goroutine and then only read. Concurrent
// reads are safe; concurrent Add is not.
type ChangeSet struct {
	root  string
	paths map[string]struct{}
}

// New creates a ChangeSet rooted at root containing paths.
//
// # Inputs
//
//   - root: Absolute project root.
//   - paths: Absolute paths, or paths relative to root in either slash or
//     OS form.
//
// # Outputs
//
//   - *ChangeSet: The change set, never nil.
func New(root string, paths ...string) *ChangeSet {
	cs := &ChangeSet{
		root:  filepath.Clean(root),
		paths: make(map[string]struct{}, len(paths)),
	}
	for _, p := range paths {
		cs.Add(p)
	}
	return cs
}

// Add inserts path and reports whether it was added. Empty paths, paths
// outside the root and duplicates are not added. A trailing carriage
// return left by CRLF output is dropped; other whitespace is part of the
// file name.
func (cs *ChangeSet) Add(path string) bool {
	path = strings.TrimSuffix(path, "\r")
	if path == "" {
		return false
	}
	abs := filepath.FromSlash(path)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cs.root, abs)
	}
	abs = filepath.Clean(abs)
	if !Within(cs.root, abs) {
		return false
	}
	if _, ok := cs.paths[abs]; ok {
		return false
	}
	cs.paths[abs] = struct{}{}
	return true
}

// Root returns the project root the set is anchored to.
func (cs *ChangeSet) Root() string {
	return cs.root
}

// Contains reports whether the cleaned absolute path is in the set.
func (cs *ChangeSet) Contains(absPath string) bool {
	_, ok := cs.paths[filepath.Clean(absPath)]
	return ok
}

// Len returns the number of paths.
func (cs *ChangeSet) Len() int {
	return len(cs.paths)
}

// IsEmpty reports whether no file changed.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.paths) == 0
}

// Paths returns the absolute paths in sorted order.
func (cs *ChangeSet) Paths() []string {
	out := make([]string, 0, len(cs.paths))
	for p := range cs.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Relative returns root-relative slash paths in sorted order.
func (cs *ChangeSet) Relative() []string {
	abs := cs.Paths()
	out := make([]string, 0, len(abs))
	for _, p := range abs {
		rel, err := filepath.Rel(cs.root, p)
		if err != nil {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// Within reports whether path is root itself or lies beneath it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
