// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by the CLI.
const (
	EnvCI            = "CI"
	EnvGitHubBaseRef = "GITHUB_BASE_REF"
	EnvGitHubSHA     = "GITHUB_SHA"
)

// Environment is the invocation context.
type Environment struct {
	// CI is true in a pipeline.
	CI bool

	// BaseRef is the pull request's target branch name.
	BaseRef string

	// SHA is the commit under test.
	SHA string
}

// LoadEnvFile seeds the process environment from a .env file. Variables
// that are already set win. A missing file is ignored unless required.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// EnvironmentFromOS reads the Environment from the process.
func EnvironmentFromOS() Environment {
	return LookupEnvironment(os.LookupEnv)
}

// LookupEnvironment reads the Environment through lookup.
//
// CI counts as set when it is non-empty and not "false" or "0".
func LookupEnvironment(lookup func(string) (string, bool)) Environment {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	ci := strings.ToLower(get(EnvCI))
	return Environment{
		CI:      ci != "" && ci != "false" && ci != "0",
		BaseRef: get(EnvGitHubBaseRef),
		SHA:     get(EnvGitHubSHA),
	}
}

// Revisions are the diff endpoints. An empty Head means the current branch.
type Revisions struct {
	Base string
	Head string
}

// Revisions picks the diff endpoints for env.
//
// # Description
//
// In CI: base = <remote>/$GITHUB_BASE_REF, head = $GITHUB_SHA. Locally:
// base = trunk branch, head = current branch. Non-empty baseFlag and
// headFlag replace the computed values.
//
// # Outputs
//
//   - Revisions: The endpoints.
//   - error: ErrMissingRevision in CI when a variable is missing and not
//     replaced by a flag.
func (c *Config) Revisions(env Environment, baseFlag, headFlag string) (Revisions, error) {
	var rev Revisions
	if env.CI {
		if env.BaseRef != "" {
			rev.Base = firstNonEmpty(c.Remote, "origin") + "/" + env.BaseRef
		}
		rev.Head = env.SHA
	} else {
		rev.Base = c.TrunkBranch
	}

	rev.Base = firstNonEmpty(baseFlag, rev.Base)
	rev.Head = firstNonEmpty(headFlag, rev.Head)

	if env.CI {
		if rev.Base == "" {
			return Revisions{}, fmt.Errorf("%w: %s is not set", ErrMissingRevision, EnvGitHubBaseRef)
		}
		if rev.Head == "" {
			return Revisions{}, fmt.Errorf("%w: %s is not set", ErrMissingRevision, EnvGitHubSHA)
		}
	}
	return rev, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
