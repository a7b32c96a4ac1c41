// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package override decides when a change cannot be scoped by dependency
// analysis and every test must run.
//
// Two kinds of change defeat import tracing:
//
//   - Global styling. Files under a theme directory restyle every page
//     without being imported by the tests that render them.
//   - Untraceable assets. Icons are referenced by name through a sprite,
//     not imported. A changed icon is only traceable when the generated
//     name manifest changed with it, because tests import the manifest.
//
// The Policy evaluates rules in order: run-all directories, run-all files,
// then asset rules. The first rule that fires wins.
package override

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/changeset"
)

// Action is the outcome of a policy decision.
type Action int

const (
	// Continue hands the change set to test selection.
	Continue Action = iota

	// RunAll short-circuits selection; every test runs.
	RunAll
)

func (a Action) String() string {
	if a == RunAll {
		return "run_all"
	}
	return "continue"
}

// MarshalText encodes the action by name in reports.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Rule names reported on a Decision.
const (
	RuleRunAllDir        = "run_all_dir"
	RuleRunAllFile       = "run_all_file"
	RuleUntraceableAsset = "untraceable_asset"
)

// Decision is the policy outcome with the rule that produced it.
type Decision struct {
	Action Action `json:"action"`

	// Rule is empty for Continue.
	Rule string `json:"rule,omitempty"`

	// Reason is a human-readable explanation.
	Reason string `json:"reason"`

	// Paths are the root-relative paths that triggered the rule.
	Paths []string `json:"paths,omitempty"`
}

// AssetRule pairs an asset directory with the manifest that makes its
// changes traceable.
type AssetRule struct {
	Dir      string `json:"dir"`
	Manifest string `json:"manifest"`
}

// Rules configures a Policy. Paths are root-relative and slash-separated.
type Rules struct {
	RunAllDirs []string

	// RunAllFiles are doublestar patterns matched against whole paths. A
	// plain file name matches only itself at that location.
	RunAllFiles []string

	UntraceableAssets []AssetRule
}

// DefaultRules returns the theme and icon-sprite rules. Theme entry files
// next to the theme directory, such as theme.ts, count as theme changes.
func DefaultRules() Rules {
	return Rules{
		RunAllDirs:  []string{"theme"},
		RunAllFiles: []string{"theme.*"},
		UntraceableAssets: []AssetRule{
			{Dir: "icons", Manifest: "public/icons/name.d.ts"},
		},
	}
}

// Policy evaluates Rules against a change set.
//
// # Thread Safety
//
// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	rules Rules
}

// NewPolicy creates a Policy. Directory entries are normalised so that
// "theme", "theme/" and "./theme" are equivalent.
func NewPolicy(rules Rules) *Policy {
	norm := Rules{}
	for _, d := range rules.RunAllDirs {
		if d = normalize(d); d != "" {
			norm.RunAllDirs = append(norm.RunAllDirs, d)
		}
	}
	for _, f := range rules.RunAllFiles {
		if f = normalize(f); f != "" {
			norm.RunAllFiles = append(norm.RunAllFiles, f)
		}
	}
	for _, a := range rules.UntraceableAssets {
		a.Dir = normalize(a.Dir)
		a.Manifest = normalize(a.Manifest)
		if a.Dir != "" {
			norm.UntraceableAssets = append(norm.UntraceableAssets, a)
		}
	}
	return &Policy{rules: norm}
}

// Rules returns the normalised rules.
func (p *Policy) Rules() Rules {
	return p.rules
}

// Decide evaluates the rules against cs.
func (p *Policy) Decide(cs *changeset.ChangeSet) Decision {
	rel := cs.Relative()
	changed := make(map[string]bool, len(rel))
	for _, r := range rel {
		changed[r] = true
	}

	for _, dir := range p.rules.RunAllDirs {
		if hits := under(rel, dir); len(hits) > 0 {
			return Decision{
				Action: RunAll,
				Rule:   RuleRunAllDir,
				Reason: "changes under " + dir + "/ affect every page",
				Paths:  hits,
			}
		}
	}

	if files := matchAny(rel, p.rules.RunAllFiles); len(files) > 0 {
		return Decision{
			Action: RunAll,
			Rule:   RuleRunAllFile,
			Reason: "global file changed",
			Paths:  files,
		}
	}

	for _, asset := range p.rules.UntraceableAssets {
		hits := under(rel, asset.Dir)
		if len(hits) == 0 {
			continue
		}
		if asset.Manifest != "" && changed[asset.Manifest] {
			continue
		}
		return Decision{
			Action: RunAll,
			Rule:   RuleUntraceableAsset,
			Reason: "assets under " + asset.Dir + "/ changed without " + asset.Manifest,
			Paths:  hits,
		}
	}

	return Decision{Action: Continue, Reason: "no override rule matched"}
}

// matchAny returns the paths matching any pattern. rel is sorted, so the
// result is too. A malformed pattern falls back to an exact comparison.
func matchAny(rel, patterns []string) []string {
	var hits []string
	for _, r := range rel {
		for _, pattern := range patterns {
			ok, err := doublestar.Match(pattern, r)
			if err != nil {
				ok = pattern == r
			}
			if ok {
				hits = append(hits, r)
				break
			}
		}
	}
	return hits
}

// under returns the paths strictly inside dir. rel is sorted, so the
// result is too.
func under(rel []string, dir string) []string {
	prefix := dir + "/"
	var hits []string
	for _, r := range rel {
		if strings.HasPrefix(r, prefix) {
			hits = append(hits, r)
		}
	}
	return hits
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}
