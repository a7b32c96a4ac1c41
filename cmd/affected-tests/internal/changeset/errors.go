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
	"errors"
	"fmt"
)

var (
	// ErrDiffFailed indicates that the VCS diff could not be produced.
	// Every *ExecutionError matches it via errors.Is.
	ErrDiffFailed = errors.New("changed-file query failed")

	// ErrInvalidPatch indicates that a patch file could not be parsed.
	ErrInvalidPatch = errors.New("invalid patch")

	// ErrEmptyRevision indicates a missing base or head revision.
	ErrEmptyRevision = errors.New("revision must not be empty")
)

// ExecutionError wraps a failed git invocation with its stderr.
//
// # Example
//
//	_, err := provider.GetChangedFiles(ctx, "origin/main", "abc123")
//	var execErr *changeset.ExecutionError
//	if errors.As(err, &execErr) {
//	    fmt.Println(execErr.Stderr) // "fatal: bad revision 'origin/main'"
//	}
type ExecutionError struct {
	// Command is the full command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if the process never ran).
	ExitCode int

	// Stderr is the raw standard error output.
	Stderr string

	// Wrapped is the underlying error from os/exec.
	Wrapped error
}

// Error returns "<command> (exit N): <stderr>".
func (e *ExecutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying exec error.
func (e *ExecutionError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is ErrDiffFailed.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrDiffFailed
}
