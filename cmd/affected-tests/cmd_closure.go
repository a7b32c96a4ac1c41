// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/affected"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/depgraph"
)

// closureOutput is the JSON form of one closure, with root-relative paths.
type closureOutput struct {
	Entry      string                          `json:"entry"`
	Files      []string                        `json:"files"`
	Unresolved []depgraph.UnresolvedDependency `json:"unresolved,omitempty"`
}

func newClosureCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "closure FILE...",
		Short: "Print the import closure of files",
		Long: `Print every repository file reachable through static imports from each FILE,
and the import specifiers that could not be resolved.

Use it to check why a test was or was not selected.

Examples:
  affected-tests closure ui/shared/forum/chats.pw.tsx
  affected-tests closure --json ui/shared/**/*.pw.tsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexer, err := affected.NewIndexer(a.root, a.cfg, a.logger.Slog())
			if err != nil {
				return err
			}

			outputs := make([]closureOutput, 0, len(args))
			for _, arg := range args {
				entry := arg
				if !filepath.IsAbs(entry) {
					entry = filepath.Join(a.root, filepath.FromSlash(entry))
				}
				closure, err := indexer.BuildClosure(cmd.Context(), entry)
				if err != nil {
					return fmt.Errorf("closure of %s: %w", arg, err)
				}
				outputs = append(outputs, toClosureOutput(a.root, closure))
			}

			if asJSON {
				data, err := json.MarshalIndent(outputs, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding closures: %w", err)
				}
				fmt.Fprintln(a.stdout, string(data))
				return nil
			}
			for i, out := range outputs {
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				fmt.Fprintf(a.stdout, "%s (%d files)\n", out.Entry, len(out.Files))
				for _, f := range out.Files {
					fmt.Fprintf(a.stdout, "  %s\n", f)
				}
				for _, u := range out.Unresolved {
					fmt.Fprintf(a.stdout, "  ? %s (from %s)\n", u.Specifier, u.From)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func toClosureOutput(root string, c *depgraph.Closure) closureOutput {
	out := closureOutput{Entry: relativeTo(root, c.Entry)}
	for _, f := range c.Files {
		out.Files = append(out.Files, relativeTo(root, f))
	}
	for _, u := range c.Unresolved {
		out.Unresolved = append(out.Unresolved, depgraph.UnresolvedDependency{
			From:      relativeTo(root, u.From),
			Specifier: u.Specifier,
		})
	}
	return out
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
