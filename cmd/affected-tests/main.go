// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command affected-tests decides which end-to-end tests a change needs.
//
// It diffs the working branch against its base, computes the import
// closure of every Playwright component test and writes the tests whose
// closure touches a changed file to a sentinel file:
//
//	absent     run every test
//	empty      run no tests
//	non-empty  run the listed tests, one per line
//
// Usage:
//
//	affected-tests run                      # local: diff current branch against main
//	CI=true affected-tests run              # CI: diff $GITHUB_SHA against origin/$GITHUB_BASE_REF
//	affected-tests run --files lib/format.ts
//	affected-tests closure ui/shared/forum/chats.pw.tsx
//	affected-tests status
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
