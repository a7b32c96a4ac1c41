// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sentinel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSink(t *testing.T) *Sink {
	t.Helper()
	return NewSink(filepath.Join(t.TempDir(), "playwright", "affected-tests.txt"))
}

func TestSink_Write_Specific(t *testing.T) {
	s := newSink(t)
	require.NoError(t, s.Write(Tests([]string{"ui/a.pw.tsx", "ui/b.pw.tsx"})))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "ui/a.pw.tsx\nui/b.pw.tsx", string(data), "one path per line, no trailing newline")

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, Specific, got.State)
	assert.Equal(t, []string{"ui/a.pw.tsx", "ui/b.pw.tsx"}, got.Paths)
}

func TestSink_Write_Empty(t *testing.T) {
	s := newSink(t)
	require.NoError(t, s.Write(None()))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, Empty, got.State)
}

func TestSink_Write_SpecificWithoutPathsIsEmpty(t *testing.T) {
	s := newSink(t)
	require.NoError(t, s.Write(Result{State: Specific}))
	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, Empty, got.State)
}

func TestSink_Write_UnspecifiedRemoves(t *testing.T) {
	s := newSink(t)
	require.NoError(t, s.Write(None()))
	require.NoError(t, s.Write(RunAll()))

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, Unspecified, got.State)
}

func TestSink_Write_ReplacesAndLeavesNoTemp(t *testing.T) {
	s := newSink(t)
	require.NoError(t, s.Write(Tests([]string{"old.pw.tsx"})))
	require.NoError(t, s.Write(Tests([]string{"new.pw.tsx"})))

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"new.pw.tsx"}, got.Paths)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "affected-tests.txt", entries[0].Name())
}

func TestSink_Write_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "playwright")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))

	s := NewSink(filepath.Join(blocker, "affected-tests.txt"))
	err := s.Write(None())
	assert.ErrorIs(t, err, ErrIO)
}

func TestSink_Clear(t *testing.T) {
	s := newSink(t)
	assert.NoError(t, s.Clear(), "clearing a missing file is fine")

	require.NoError(t, s.Write(None()))
	require.NoError(t, s.Clear())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestSink_Read_Whitespace(t *testing.T) {
	s := newSink(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("\n  \r\n"), 0o644))

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, Empty, got.State)

	require.NoError(t, os.WriteFile(s.Path(), []byte("a.pw.tsx\r\n\nb.pw.tsx\n"), 0o644))
	got, err = s.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pw.tsx", "b.pw.tsx"}, got.Paths)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unspecified", Unspecified.String())
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "specific", Specific.String())
}

func TestTests_CopiesInput(t *testing.T) {
	in := []string{"a"}
	r := Tests(in)
	in[0] = "mutated"
	assert.Equal(t, []string{"a"}, r.Paths)
}
