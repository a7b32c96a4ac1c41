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

	"github.com/spf13/cobra"
)

func newChangesCmd(a *app) *cobra.Command {
	flags := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Print the changed files a run would use",
		Long: `Print the changed files, root-relative, one per line.

Revisions are chosen exactly as for "run": in CI from GITHUB_BASE_REF and
GITHUB_SHA, locally from the trunk branch and the current branch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := flags.provider(a)
			if err != nil {
				return err
			}
			cs, err := provider.ChangedFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range cs.Relative() {
				fmt.Fprintln(a.stdout, p)
			}
			a.logger.Info("change set", "files", cs.Len())
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
