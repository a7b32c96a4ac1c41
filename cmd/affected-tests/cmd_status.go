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

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/config"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/sentinel"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print what the sentinel file tells the test runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := sentinel.NewSink(config.Abs(a.root, a.cfg.SentinelPath))
			result, err := sink.Read()
			if err != nil {
				return err
			}

			a.out.Field("Sentinel", a.cfg.SentinelPath)
			switch result.State {
			case sentinel.Unspecified:
				a.out.Field("State", "absent (run all tests)")
			case sentinel.Empty:
				a.out.Field("State", "empty (run no tests)")
			case sentinel.Specific:
				a.out.Field("State", fmt.Sprintf("%d tests", len(result.Paths)))
				a.out.List(result.Paths)
			}
			return nil
		},
	}
}
