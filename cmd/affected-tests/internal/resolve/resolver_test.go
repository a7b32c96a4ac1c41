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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/testutil"
)

func newFixtureResolver(t *testing.T, extra map[string]string) (*TSResolver, string) {
	t.Helper()
	root := testutil.TempRoot(t)
	files := testutil.ProjectFiles()
	for k, v := range extra {
		files[k] = v
	}
	testutil.WriteTree(t, root, files)

	r, err := New(Options{Root: root, TSConfigPath: filepath.Join(root, "tsconfig.json")})
	require.NoError(t, err)
	return r, root
}

func TestTSResolver_Resolve(t *testing.T) {
	r, root := newFixtureResolver(t, map[string]string{
		"ui/shared/forum/index.ts":              "export * from './ChatsList';",
		"lib/emitted.ts":                        "export {};",
		"lib/types.d.ts":                        "export type X = 1;",
		"lib/data.json":                         "{}",
		"lib/esm.mts":                           "export {};",
		"node_modules/react/index.js":           "module.exports = {};",
		"node_modules/@chakra-ui/react/a.js":    "",
		"ui/shared/node_modules/local/index.js": "",
	})
	from := filepath.Join(root, "ui", "shared", "forum", "chats.pw.tsx")
	abs := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	tests := []struct {
		name   string
		spec   string
		status Status
		path   string
	}{
		{"relative with extension lookup", "./ChatsList", Internal, abs("ui/shared/forum/ChatsList.tsx")},
		{"relative exact file", "./ChatsList.tsx", Internal, abs("ui/shared/forum/ChatsList.tsx")},
		{"parent relative", "../Button", Internal, abs("ui/shared/Button.tsx")},
		{"directory index", ".", Internal, abs("ui/shared/forum/index.ts")},
		{"paths alias", "ui/shared/Button", Internal, abs("ui/shared/Button.tsx")},
		{"lib alias", "lib/format", Internal, abs("lib/format.ts")},
		{"js to ts substitution", "lib/emitted.js", Internal, abs("lib/emitted.ts")},
		{"mjs to mts substitution", "lib/esm.mjs", Internal, abs("lib/esm.mts")},
		{"declaration file", "lib/types", Internal, abs("lib/types.d.ts")},
		{"json", "lib/data.json", Internal, abs("lib/data.json")},
		{"baseUrl", "configs/app/features", Internal, abs("configs/app/features.ts")},
		{"asset via baseUrl", "icons/star.svg", Internal, abs("icons/star.svg")},
		{"query string stripped", "icons/star.svg?url", Internal, abs("icons/star.svg")},
		{"node builtin prefix", "node:fs", External, ""},
		{"bare builtin", "path/posix", External, ""},
		{"package", "react", External, abs("node_modules/react")},
		{"scoped package", "@chakra-ui/react", External, abs("node_modules/@chakra-ui/react")},
		{"nested node_modules", "local", External, abs("ui/shared/node_modules/local")},
		{"missing package", "@playwright/test", Unresolved, ""},
		{"missing relative", "./Nope", Unresolved, ""},
		{"empty", "", Unresolved, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.spec, from)
			assert.Equal(t, tt.status, got.Status, "status for %q", tt.spec)
			if tt.path != "" {
				assert.Equal(t, tt.path, got.Path)
			}
		})
	}
}

func TestTSResolver_LookupIntoNodeModulesIsExternal(t *testing.T) {
	r, root := newFixtureResolver(t, map[string]string{
		"node_modules/pkg/util.ts": "export {};",
	})
	from := filepath.Join(root, "lib", "format.ts")

	got := r.Resolve("../node_modules/pkg/util", from)
	assert.Equal(t, External, got.Status)
}

func TestTSResolver_OutsideRootIsExternal(t *testing.T) {
	parent := testutil.TempRoot(t)
	testutil.WriteTree(t, parent, map[string]string{
		"shared/util.ts": "export {};",
		"app/main.ts":    "import '../shared/util';",
	})
	r, err := New(Options{Root: filepath.Join(parent, "app")})
	require.NoError(t, err)

	got := r.Resolve("../shared/util", filepath.Join(parent, "app", "main.ts"))
	assert.Equal(t, External, got.Status)
	assert.Equal(t, filepath.Join(parent, "shared", "util.ts"), got.Path)
}

func TestTSResolver_NoTSConfig(t *testing.T) {
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, map[string]string{"lib/format.ts": ""})

	r, err := New(Options{Root: root, TSConfigPath: filepath.Join(root, "tsconfig.json")})
	require.NoError(t, err)
	assert.Nil(t, r.TSConfig())
	assert.Equal(t, Unresolved, r.Resolve("lib/format", filepath.Join(root, "a.ts")).Status)
}

func TestTSResolver_InvalidTSConfig(t *testing.T) {
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, map[string]string{"tsconfig.json": "{ not json"})

	_, err := New(Options{Root: root, TSConfigPath: filepath.Join(root, "tsconfig.json")})
	assert.ErrorIs(t, err, ErrInvalidTSConfig)
}

func TestTSResolver_RequiresRoot(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestTSResolver_CustomExtensions(t *testing.T) {
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, map[string]string{"a.vue": "", "b.ts": ""})

	r, err := New(Options{Root: root, Extensions: []string{".vue"}})
	require.NoError(t, err)
	from := filepath.Join(root, "main.ts")
	assert.Equal(t, Internal, r.Resolve("./a", from).Status)
	assert.Equal(t, Unresolved, r.Resolve("./b", from).Status)
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "react", packageName("react"))
	assert.Equal(t, "react-dom", packageName("react-dom/client"))
	assert.Equal(t, "@scope/pkg", packageName("@scope/pkg/sub/path"))
	assert.Equal(t, "", packageName("@scope"))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "internal", Internal.String())
	assert.Equal(t, "external", External.String())
	assert.Equal(t, "unresolved", Unresolved.String())
}
