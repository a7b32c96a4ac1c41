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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/changeset"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/config"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/sentinel"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/testutil"
)

const (
	chatsTest = "ui/shared/forum/chats.pw.tsx"
	otherTest = "ui/shared/other/other.pw.tsx"
)

func newProject(t *testing.T) string {
	t.Helper()
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, testutil.ProjectFiles())
	return root
}

func newRunner(t *testing.T, root string, provider changeset.Provider) *Runner {
	t.Helper()
	r, err := New(Options{Root: root, Provider: provider})
	require.NoError(t, err)
	return r
}

func runWithFiles(t *testing.T, root string, files ...string) (*Report, sentinel.Result) {
	t.Helper()
	r := newRunner(t, root, changeset.StaticProvider{Root: root, Files: files})
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	got, err := r.Sink().Read()
	require.NoError(t, err)
	return report, got
}

func sentinelPath(root string) string {
	return filepath.Join(root, "playwright", "affected-tests.txt")
}

func writeStaleSentinel(t *testing.T, root string) {
	t.Helper()
	testutil.WriteTree(t, root, map[string]string{"playwright/affected-tests.txt": "stale.pw.tsx"})
}

func TestRun_SelectsDependentTestOnly(t *testing.T) {
	root := newProject(t)

	report, got := runWithFiles(t, root, "ui/shared/forum/ChatsList.tsx")

	assert.Equal(t, DecisionSelected, report.Decision)
	assert.Equal(t, sentinel.Specific, got.State)
	assert.Equal(t, []string{chatsTest}, got.Paths)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, "specific", report.Sentinel)

	data, err := os.ReadFile(sentinelPath(root))
	require.NoError(t, err)
	assert.Equal(t, chatsTest, string(data), "one path per line, no trailing newline")
}

func TestRun_TransitiveDependency(t *testing.T) {
	root := newProject(t)

	report, got := runWithFiles(t, root, "lib/format.ts")

	assert.Equal(t, DecisionSelected, report.Decision)
	assert.Equal(t, []string{chatsTest}, got.Paths)
}

func TestRun_TestFileItselfChanged(t *testing.T) {
	root := newProject(t)

	_, got := runWithFiles(t, root, otherTest, chatsTest)

	assert.Equal(t, []string{chatsTest, otherTest}, got.Paths, "discovery order")
}

func TestRun_ThemeChangeRunsAll(t *testing.T) {
	root := newProject(t)
	writeStaleSentinel(t, root)

	report, got := runWithFiles(t, root, "theme/components/Skeleton.ts")

	assert.Equal(t, DecisionRunAll, report.Decision)
	assert.Equal(t, sentinel.Unspecified, got.State)
	assert.NoFileExists(t, sentinelPath(root))
	require.NotNil(t, report.Override)
	assert.Equal(t, "run_all_dir", report.Override.Rule)
	assert.Zero(t, report.Candidates, "selection is skipped")
}

func TestRun_NoChangesWritesEmptySentinel(t *testing.T) {
	root := newProject(t)
	writeStaleSentinel(t, root)

	report, got := runWithFiles(t, root)

	assert.Equal(t, DecisionNoChanges, report.Decision)
	assert.Equal(t, sentinel.Empty, got.State)
	assert.Nil(t, report.Override)

	data, err := os.ReadFile(sentinelPath(root))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRun_IconWithoutManifestRunsAll(t *testing.T) {
	root := newProject(t)

	report, got := runWithFiles(t, root, "icons/star.svg")

	assert.Equal(t, DecisionRunAll, report.Decision)
	assert.Equal(t, sentinel.Unspecified, got.State)
	assert.NoFileExists(t, sentinelPath(root))
}

func TestRun_IconWithManifestContinues(t *testing.T) {
	root := newProject(t)

	report, got := runWithFiles(t, root, "icons/star.svg", "public/icons/name.d.ts")

	assert.Equal(t, DecisionNoneSelected, report.Decision)
	assert.Equal(t, sentinel.Empty, got.State)
	assert.FileExists(t, sentinelPath(root))
}

func TestRun_UnrelatedChangeSelectsNothing(t *testing.T) {
	root := newProject(t)

	report, got := runWithFiles(t, root, "configs/app/features.ts")

	assert.Equal(t, DecisionNoneSelected, report.Decision)
	assert.Equal(t, sentinel.Empty, got.State)
	assert.Empty(t, report.Selected)
	assert.Len(t, report.Decisions, 2)
	assert.NotEmpty(t, report.Unresolved, "react and @playwright/test are not installed")
}

func TestRun_CandidateCapOverflowSelects(t *testing.T) {
	root := newProject(t)
	cfg := config.Default()
	cfg.MaxCandidates = 1

	r, err := New(Options{
		Root:     root,
		Config:   cfg,
		Provider: changeset.StaticProvider{Root: root, Files: []string{"configs/app/features.ts"}},
	})
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Analyzed)
	assert.Equal(t, 1, report.Overflow)
	assert.Equal(t, []string{otherTest}, report.Selected)
}

type failingProvider struct{ err error }

func (f failingProvider) ChangedFiles(context.Context) (*changeset.ChangeSet, error) {
	return nil, f.err
}

func TestRun_ProviderFailureLeavesSentinelAbsent(t *testing.T) {
	root := newProject(t)
	writeStaleSentinel(t, root)

	diffErr := &changeset.ExecutionError{Command: "git diff", ExitCode: 128, Stderr: "fatal: bad revision"}
	r := newRunner(t, root, failingProvider{err: diffErr})

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, changeset.ErrDiffFailed)
	assert.NoFileExists(t, sentinelPath(root))
}

func TestRun_CanceledLeavesSentinelAbsent(t *testing.T) {
	root := newProject(t)
	writeStaleSentinel(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t, root, changeset.StaticProvider{Root: root, Files: []string{"lib/format.ts"}})
	_, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoFileExists(t, sentinelPath(root))
}

func TestRun_GitChangeSet(t *testing.T) {
	root := newProject(t)
	testutil.InitGitRepo(t, root)
	testutil.Git(t, root, "checkout", "-q", "-b", "feature")
	testutil.WriteTree(t, root, map[string]string{
		"ui/shared/Button.tsx": "export default function Button() { return <button type=\"button\"/>; }\n",
	})
	testutil.Git(t, root, "commit", "-q", "-am", "button")

	provider, err := NewProvider(ProviderOptions{
		Root:      root,
		Revisions: config.Revisions{Base: "main"},
	})
	require.NoError(t, err)

	r := newRunner(t, root, provider)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ui/shared/Button.tsx"}, report.Changed)
	assert.Equal(t, []string{otherTest}, report.Selected)
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New(Options{Root: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestNew_InvalidTSConfig(t *testing.T) {
	root := newProject(t)
	testutil.WriteTree(t, root, map[string]string{"tsconfig.json": "{ not json"})

	_, err := New(Options{Root: root, Provider: changeset.StaticProvider{Root: root}})
	assert.Error(t, err)
}

func TestResolveRoot(t *testing.T) {
	root := testutil.TempRoot(t)
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(root, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := ResolveRoot(link)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	_, err = ResolveRoot(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	root := t.TempDir()

	p, err := NewProvider(ProviderOptions{Root: root, Files: []string{"a.ts"}})
	require.NoError(t, err)
	assert.IsType(t, changeset.StaticProvider{}, p)

	p, err = NewProvider(ProviderOptions{Root: root, Patch: "pr.diff"})
	require.NoError(t, err)
	assert.IsType(t, changeset.PatchProvider{}, p)

	p, err = NewProvider(ProviderOptions{Root: root, Revisions: config.Revisions{Base: "main", Head: "HEAD"}})
	require.NoError(t, err)
	assert.IsType(t, &changeset.GitProvider{}, p)

	_, err = NewProvider(ProviderOptions{Root: root, Files: []string{"a.ts"}, Patch: "pr.diff"})
	assert.ErrorIs(t, err, ErrConflictingSources)
}

func TestRun_PatchProvider(t *testing.T) {
	root := newProject(t)
	patch := `diff --git a/lib/format.ts b/lib/format.ts
index 1111111..2222222 100644
--- a/lib/format.ts
+++ b/lib/format.ts
@@ -1 +1 @@
-export const format = (s: string) => s;
+export const format = (s: string) => s.trim();
`
	patchPath := filepath.Join(t.TempDir(), "pr.diff")
	require.NoError(t, os.WriteFile(patchPath, []byte(patch), 0o644))

	provider, err := NewProvider(ProviderOptions{Root: root, Patch: patchPath})
	require.NoError(t, err)
	report, err := newRunner(t, root, provider).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"lib/format.ts"}, report.Changed)
	assert.Equal(t, []string{chatsTest}, report.Selected)
}

func TestWriteReport(t *testing.T) {
	root := newProject(t)
	report, _ := runWithFiles(t, root, "ui/shared/Button.tsx")

	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, WriteReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, report.RunID, decoded["run_id"])
	assert.Equal(t, DecisionSelected, decoded["decision"])
	assert.Equal(t, "playwright/affected-tests.txt", decoded["sentinel_path"])
	override, ok := decoded["override"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "continue", override["action"])
}
