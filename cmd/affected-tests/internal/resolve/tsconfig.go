// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tailscale/hujson"
)

// maxExtendsDepth bounds tsconfig "extends" chains.
const maxExtendsDepth = 16

// PathMapping is one compilerOptions.paths entry.
type PathMapping struct {
	// Pattern is the alias, e.g. "ui/*" or "jquery".
	Pattern string

	// Targets are absolute substitution templates, each with at most one '*'.
	Targets []string
}

// prefix and suffix split the pattern around its wildcard.
func (m PathMapping) split() (prefix, suffix string, wildcard bool) {
	i := strings.IndexByte(m.Pattern, '*')
	if i < 0 {
		return m.Pattern, "", false
	}
	return m.Pattern[:i], m.Pattern[i+1:], true
}

// TSConfig is the module-resolution subset of a tsconfig.json.
type TSConfig struct {
	// Path is the file that was loaded.
	Path string

	// BaseURL is the absolute baseUrl, or "" if none is set.
	BaseURL string

	// Paths are the alias mappings.
	Paths []PathMapping
}

// rawTSConfig mirrors the JSON layout.
type rawTSConfig struct {
	Extends         json.RawMessage `json:"extends"`
	CompilerOptions struct {
		BaseURL *string             `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// LoadTSConfig reads a tsconfig.json, following "extends".
//
// # Description
//
// The file is JSONC: comments and trailing commas are accepted. Options
// from extending files override the ones they extend. baseUrl is resolved
// against the file that declares it; path targets are resolved against
// baseUrl when set, else against the file that declares the paths.
//
// # Outputs
//
//   - *TSConfig: The merged configuration.
//   - error: ErrInvalidTSConfig, ErrExtendsCycle, or a read error.
func LoadTSConfig(path string) (*TSConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg := &TSConfig{Path: abs}
	state := &mergeState{}
	if err := loadInto(abs, state, map[string]bool{}, 0); err != nil {
		return nil, err
	}

	if state.baseURL != nil {
		cfg.BaseURL = *state.baseURL
	}
	pathsBase := state.pathsDir
	if cfg.BaseURL != "" {
		pathsBase = cfg.BaseURL
	}
	for pattern, targets := range state.paths {
		m := PathMapping{Pattern: pattern}
		for _, target := range targets {
			m.Targets = append(m.Targets, filepath.Join(pathsBase, filepath.FromSlash(target)))
		}
		cfg.Paths = append(cfg.Paths, m)
	}
	sort.Slice(cfg.Paths, func(i, j int) bool { return cfg.Paths[i].Pattern < cfg.Paths[j].Pattern })
	return cfg, nil
}

// mergeState holds the effective options while walking an extends chain.
// Parents are applied first so children override them.
type mergeState struct {
	baseURL  *string
	paths    map[string][]string
	pathsDir string
}

func loadInto(path string, state *mergeState, visiting map[string]bool, depth int) error {
	if depth > maxExtendsDepth || visiting[path] {
		return fmt.Errorf("%w: %s", ErrExtendsCycle, path)
	}
	visiting[path] = true
	defer delete(visiting, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading tsconfig %s: %w", path, err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTSConfig, path, err)
	}
	var raw rawTSConfig
	if err := json.Unmarshal(std, &raw); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTSConfig, path, err)
	}

	dir := filepath.Dir(path)
	parents, err := extendsList(raw.Extends)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTSConfig, path, err)
	}
	for _, parent := range parents {
		parentPath, err := locateExtends(dir, parent)
		if err != nil {
			return err
		}
		if err := loadInto(parentPath, state, visiting, depth+1); err != nil {
			return err
		}
	}

	if raw.CompilerOptions.BaseURL != nil {
		base := filepath.Join(dir, filepath.FromSlash(*raw.CompilerOptions.BaseURL))
		state.baseURL = &base
	}
	if raw.CompilerOptions.Paths != nil {
		state.paths = raw.CompilerOptions.Paths
		state.pathsDir = dir
	}
	return nil
}

// extendsList accepts both the string and the array form.
func extendsList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("extends must be a string or string array")
	}
	return many, nil
}

// locateExtends finds the file named by an "extends" value: a relative or
// absolute path (".json" optional), or a package under node_modules.
func locateExtends(dir, ref string) (string, error) {
	var candidates []string
	if strings.HasPrefix(ref, ".") || filepath.IsAbs(ref) {
		base := ref
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, filepath.FromSlash(ref))
		}
		candidates = append(candidates, base, base+".json")
	} else {
		for d := dir; ; d = filepath.Dir(d) {
			base := filepath.Join(d, "node_modules", filepath.FromSlash(ref))
			candidates = append(candidates, base, base+".json", filepath.Join(base, "tsconfig.json"))
			if filepath.Dir(d) == d {
				break
			}
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: extended config %q not found from %s", ErrInvalidTSConfig, ref, dir)
}

// match returns the substituted targets for specifier.
//
// An exact (wildcard-free) pattern wins; otherwise the wildcard pattern
// with the longest prefix is used. Only one mapping is applied.
func (c *TSConfig) match(specifier string) []string {
	if c == nil {
		return nil
	}
	var best *PathMapping
	bestPrefix := -1
	var captured string
	for i := range c.Paths {
		m := &c.Paths[i]
		prefix, suffix, wildcard := m.split()
		if !wildcard {
			if specifier == m.Pattern {
				return append([]string(nil), m.Targets...)
			}
			continue
		}
		if len(specifier) < len(prefix)+len(suffix) {
			continue
		}
		if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
			continue
		}
		if len(prefix) > bestPrefix {
			best = m
			bestPrefix = len(prefix)
			captured = specifier[len(prefix) : len(specifier)-len(suffix)]
		}
	}
	if best == nil {
		return nil
	}
	out := make([]string, 0, len(best.Targets))
	for _, target := range best.Targets {
		out = append(out, strings.Replace(target, "*", filepath.FromSlash(captured), 1))
	}
	return out
}
