// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package testutil builds on-disk project fixtures for package tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// WriteTree writes files (relative slash paths → content) under root.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// TempRoot returns a temp directory with symlinks evaluated, so that paths
// built from it compare equal to paths the code under test cleans.
func TempRoot(t testing.TB) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return root
}

// ProjectFiles is a small Next.js-style project: a tsconfig with a
// path alias, two Playwright specs, shared components, a theme and icons.
//
//	ui/shared/forum/chats.pw.tsx → ui/shared/forum/ChatsList.tsx → ./ChatItem.tsx → lib/format.ts
//	ui/shared/other/other.pw.tsx → ui/shared/Button.tsx
func ProjectFiles() map[string]string {
	return map[string]string{
		"tsconfig.json": `{
  // comments and trailing commas are allowed in tsconfig
  "compilerOptions": {
    "baseUrl": ".",
    "paths": {
      "ui/*": ["./ui/*"],
      "lib/*": ["./lib/*"],
    },
  },
}`,
		"ui/shared/forum/chats.pw.tsx": `import React from 'react';
import { test, expect } from '@playwright/test';
import ChatsList from 'ui/shared/forum/ChatsList';

test('renders', async({ mount }) => {
  await mount(<ChatsList/>);
});
`,
		"ui/shared/forum/ChatsList.tsx": `import ChatItem from './ChatItem';
export default function ChatsList() { return <ChatItem/>; }
`,
		"ui/shared/forum/ChatItem.tsx": `import { format } from 'lib/format';
export default function ChatItem() { return <div>{format('x')}</div>; }
`,
		"lib/format.ts": `export const format = (s: string) => s;
`,
		"ui/shared/other/other.pw.tsx": `import { test } from '@playwright/test';
import Button from 'ui/shared/Button';

test('button', async({ mount }) => { await mount(<Button/>); });
`,
		"ui/shared/Button.tsx": `export default function Button() { return <button/>; }
`,
		"theme/components/Skeleton.ts": `export default {};
`,
		"icons/star.svg":          `<svg></svg>`,
		"public/icons/name.d.ts":  `export type IconName = 'star';`,
		"configs/app/features.ts": `export const features = {};`,
	}
}

// InitGitRepo turns root into a git repository with an initial commit on
// branch "main". The test is skipped when git is not installed.
func InitGitRepo(t testing.TB, root string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	Git(t, root, "init", "-q", "-b", "main")
	Git(t, root, "config", "user.email", "test@example.com")
	Git(t, root, "config", "user.name", "Test")
	Git(t, root, "config", "commit.gpgsign", "false")
	Git(t, root, "add", "-A")
	Git(t, root, "commit", "-q", "-m", "initial", "--allow-empty")
}

// Git runs a git command in dir and fails the test on error.
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}
