// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sentinel reads and writes the file that tells the downstream
// test runner what to run.
//
// The file has three states:
//
//	absent          run every test
//	present, empty  run nothing
//	present, lines  run exactly the listed test files
//
// A run clears the file first and writes it at most once at the end, so a
// run that dies half way leaves it absent and the runner falls back to the
// full suite.
package sentinel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPath is the sentinel location relative to the project root.
const DefaultPath = "playwright/affected-tests.txt"

// ErrIO wraps every filesystem failure of the sink.
var ErrIO = errors.New("sentinel I/O failed")

// State is the tri-state of a selection result.
type State int

const (
	// Unspecified means no artifact: run all.
	Unspecified State = iota

	// Empty means an empty artifact: run nothing.
	Empty

	// Specific means a newline-separated list of test files.
	Specific
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Specific:
		return "specific"
	default:
		return "unspecified"
	}
}

// Result is what the sink writes.
type Result struct {
	State State

	// Paths are root-relative slash paths; only set for Specific.
	Paths []string
}

// RunAll returns the Unspecified result.
func RunAll() Result { return Result{State: Unspecified} }

// None returns the Empty result.
func None() Result { return Result{State: Empty} }

// Tests returns a Specific result, or Empty when paths is empty.
func Tests(paths []string) Result {
	if len(paths) == 0 {
		return None()
	}
	return Result{State: Specific, Paths: append([]string(nil), paths...)}
}

// Sink owns the sentinel file.
//
// # Thread Safety
//
// A Sink must have a single writer. Concurrent Read is safe.
type Sink struct {
	path string
}

// NewSink creates a Sink for the file at path.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the sentinel file path.
func (s *Sink) Path() string {
	return s.path
}

// Clear removes the sentinel. A missing file is not an error.
func (s *Sink) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %v", ErrIO, s.path, err)
	}
	return nil
}

// Write persists r. Unspecified removes any file; the other states are
// written atomically: temp file in the same directory, fsync, rename.
func (s *Sink) Write(r Result) error {
	switch r.State {
	case Unspecified:
		return s.Clear()
	case Empty:
		return s.atomicWrite(nil)
	case Specific:
		if len(r.Paths) == 0 {
			return s.atomicWrite(nil)
		}
		return s.atomicWrite([]byte(strings.Join(r.Paths, "\n")))
	default:
		return fmt.Errorf("unknown sentinel state %d", r.State)
	}
}

// Read decodes the sentinel. Blank lines and surrounding whitespace are
// ignored, so a file with only whitespace reads as Empty.
func (s *Sink) Read() (Result, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return RunAll(), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading %s: %v", ErrIO, s.path, err)
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return Tests(paths), nil
}

func (s *Sink) atomicWrite(content []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".affected-tests-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrIO, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing content: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing to disk: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", ErrIO, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("%w: setting permissions: %v", ErrIO, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: renaming temp file: %v", ErrIO, err)
	}

	success = true
	return nil
}
