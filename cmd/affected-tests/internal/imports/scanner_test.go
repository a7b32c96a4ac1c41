// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package imports

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/testutil"
)

func specifiers(found []Import) []string {
	out := make([]string, 0, len(found))
	for _, imp := range found {
		out = append(out, imp.Specifier)
	}
	return out
}

func TestScanner_Scan_Forms(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want []string
		kind Kind
	}{
		{"default import", "a.ts", `import x from './x';`, []string{"./x"}, KindImport},
		{"named import", "a.ts", `import { a, b } from "lib/a";`, []string{"lib/a"}, KindImport},
		{"side effect", "a.ts", `import './polyfill';`, []string{"./polyfill"}, KindImport},
		{"type only", "a.ts", `import type { T } from './types';`, []string{"./types"}, KindImport},
		{"export from", "a.ts", `export { x } from './x';`, []string{"./x"}, KindExport},
		{"export star", "a.ts", `export * from './all';`, []string{"./all"}, KindExport},
		{"import equals", "a.ts", `import fs = require('fs');`, []string{"fs"}, KindImportEquals},
		{"require", "a.js", `const y = require('./y');`, []string{"./y"}, KindRequire},
		{"nested require", "a.js", `function f() { return require('./lazy').v; }`, []string{"./lazy"}, KindRequire},
		{"dynamic import", "a.tsx", `const P = React.lazy(() => import('./Page'));`, []string{"./Page"}, KindDynamicImport},
		{"template literal", "a.ts", "const m = import(`./static`);", []string{"./static"}, KindDynamicImport},
		{"jsx file", "a.jsx", `import B from './B'; export default () => <B/>;`, []string{"./B"}, KindImport},
		{"mjs file", "a.mjs", `import z from './z.mjs';`, []string{"./z.mjs"}, KindImport},
	}
	s := NewScanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := s.Scan(context.Background(), tt.path, []byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, specifiers(found))
			require.Len(t, found, 1)
			assert.Equal(t, tt.kind, found[0].Kind)
		})
	}
}

func TestScanner_Scan_IgnoresNonLiteral(t *testing.T) {
	src := "const a = import(name);\nconst b = require(path);\nconst c = import(`./x/${n}`);\nfoo('./not-an-import');\n"
	found, err := NewScanner().Scan(context.Background(), "a.ts", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScanner_Scan_DedupesInOrder(t *testing.T) {
	src := `import b from './b';
import a from './a';
export { c } from './b';
const again = require('./a');
`
	found, err := NewScanner().Scan(context.Background(), "a.js", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"./b", "./a"}, specifiers(found))
	assert.Equal(t, 1, found[0].Line)
	assert.Equal(t, 2, found[1].Line)
}

func TestScanner_Scan_Unsupported(t *testing.T) {
	s := NewScanner()
	for _, path := range []string{"icon.svg", "style.css", "data.json", "image.png", "README"} {
		assert.False(t, s.Supports(path), path)
		found, err := s.Scan(context.Background(), path, []byte("import x from './x'"))
		require.NoError(t, err)
		assert.Nil(t, found, path)
	}
	for _, path := range []string{"a.ts", "a.tsx", "a.d.ts", "a.js", "a.jsx", "a.mjs", "a.cjs", "a.mts", "a.cts"} {
		assert.True(t, s.Supports(path), path)
	}
}

func TestScanner_Scan_SyntaxErrorStillExtracts(t *testing.T) {
	src := "import ok from './ok';\nconst = ;;; {\n"
	found, err := NewScanner().Scan(context.Background(), "a.ts", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, specifiers(found), "./ok")
}

func TestScanner_Scan_TooLarge(t *testing.T) {
	s := NewScanner(WithMaxFileSize(16))
	_, err := s.Scan(context.Background(), "a.ts", []byte(strings.Repeat("a", 17)))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestScanner_Scan_InvalidUTF8(t *testing.T) {
	_, err := NewScanner().Scan(context.Background(), "a.ts", []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestScanner_Scan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner().Scan(ctx, "a.ts", []byte("import x from './x';"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_ScanFile(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"ui/Chat.tsx": "import Item from './Item';\nexport default () => <Item/>;\n",
		"big.ts":      strings.Repeat("// padding\n", 10),
	})

	found, err := NewScanner().ScanFile(context.Background(), filepath.Join(root, "ui", "Chat.tsx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"./Item"}, specifiers(found))

	_, err = NewScanner().ScanFile(context.Background(), filepath.Join(root, "missing.ts"))
	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, filepath.Join(root, "missing.ts"), scanErr.Path)

	_, err = NewScanner(WithMaxFileSize(8)).ScanFile(context.Background(), filepath.Join(root, "big.ts"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
