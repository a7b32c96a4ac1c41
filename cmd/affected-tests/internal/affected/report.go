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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/depgraph"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/override"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/selection"
)

// Report describes one run. It is printed by the CLI and optionally
// written as JSON for CI artifacts.
type Report struct {
	RunID        string    `json:"run_id"`
	Root         string    `json:"root"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	Decision     string    `json:"decision"`
	Sentinel     string    `json:"sentinel"`
	SentinelPath string    `json:"sentinel_path"`

	// Changed are the changed files, root-relative.
	Changed []string `json:"changed"`

	// Override is nil when the change set was empty.
	Override *override.Decision `json:"override,omitempty"`

	Candidates int `json:"candidates"`
	Analyzed   int `json:"analyzed"`
	Overflow   int `json:"overflow"`

	Selected   []string                        `json:"selected"`
	Decisions  []selection.CandidateDecision   `json:"decisions,omitempty"`
	Unresolved []depgraph.UnresolvedDependency `json:"unresolved,omitempty"`
	Failures   []string                        `json:"failures,omitempty"`
}

// MarshalIndent renders the report as indented JSON.
func (r *Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteReport writes r as JSON to path, creating parent directories.
func WriteReport(path string, r *Report) error {
	data, err := r.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
