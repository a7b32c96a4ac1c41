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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Provider is a source of changed files.
type Provider interface {
	// ChangedFiles returns the change set of the current run.
	ChangedFiles(ctx context.Context) (*ChangeSet, error)
}

// StaticProvider returns a fixed list of files. Entries are trimmed, so
// a hand-typed "a.ts, b.ts" list works.
type StaticProvider struct {
	Root  string
	Files []string
}

// ChangedFiles implements Provider.
func (s StaticProvider) ChangedFiles(ctx context.Context) (*ChangeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cs := New(s.Root)
	for _, f := range s.Files {
		cs.Add(strings.TrimSpace(f))
	}
	return cs, nil
}

// PatchProvider reads changed files from a unified diff, such as the
// .patch or .diff view of a pull request.
type PatchProvider struct {
	Root string

	// Path is the patch file. Ignored when Data is set.
	Path string

	// Data is the raw patch content.
	Data []byte
}

// ChangedFiles implements Provider. Both the old and the new name of
// each file diff are reported; /dev/null sides are skipped.
func (p PatchProvider) ChangedFiles(ctx context.Context) (*ChangeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := p.Data
	if data == nil {
		raw, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("reading patch %s: %w", p.Path, err)
		}
		data = raw
	}

	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	cs := New(p.Root)
	for _, fd := range fileDiffs {
		for _, name := range []string{fd.OrigName, fd.NewName} {
			if path := patchPath(name); path != "" {
				cs.Add(path)
			}
		}
	}
	return cs, nil
}

// patchPath strips the a/ or b/ prefix git adds to diff headers.
func patchPath(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
