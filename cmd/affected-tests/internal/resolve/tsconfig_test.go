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

func TestLoadTSConfig_Extends(t *testing.T) {
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, map[string]string{
		"configs/base.json": `{
  "compilerOptions": {
    "baseUrl": "..",
    "paths": { "old/*": ["./legacy/*"] },
  },
}`,
		"tsconfig.json": `{
  "extends": "./configs/base",
  /* child paths replace the parent's */
  "compilerOptions": { "paths": { "ui/*": ["./src/ui/*", "./fallback/*"] } },
}`,
	})

	cfg, err := LoadTSConfig(filepath.Join(root, "tsconfig.json"))
	require.NoError(t, err)

	assert.Equal(t, root, cfg.BaseURL, "baseUrl is relative to the file declaring it")
	require.Len(t, cfg.Paths, 1)
	assert.Equal(t, "ui/*", cfg.Paths[0].Pattern)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "ui", "*"),
		filepath.Join(root, "fallback", "*"),
	}, cfg.Paths[0].Targets)
}

func TestLoadTSConfig_ExtendsPackageAndArray(t *testing.T) {
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, map[string]string{
		"node_modules/@tsconfig/next/tsconfig.json": `{"compilerOptions": {"baseUrl": "."}}`,
		"tsconfig.strict.json":                      `{"compilerOptions": {"paths": {"@/*": ["./*"]}}}`,
		"tsconfig.json":                             `{"extends": ["@tsconfig/next", "./tsconfig.strict.json"]}`,
	})

	cfg, err := LoadTSConfig(filepath.Join(root, "tsconfig.json"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules", "@tsconfig", "next"), cfg.BaseURL)
	require.Len(t, cfg.Paths, 1)
	assert.Equal(t, []string{filepath.Join(cfg.BaseURL, "*")}, cfg.Paths[0].Targets)
}

func TestLoadTSConfig_Cycle(t *testing.T) {
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, map[string]string{
		"a.json": `{"extends": "./b.json"}`,
		"b.json": `{"extends": "./a.json"}`,
	})
	_, err := LoadTSConfig(filepath.Join(root, "a.json"))
	assert.ErrorIs(t, err, ErrExtendsCycle)
}

func TestLoadTSConfig_MissingParent(t *testing.T) {
	root := testutil.TempRoot(t)
	testutil.WriteTree(t, root, map[string]string{"tsconfig.json": `{"extends": "./nope.json"}`})
	_, err := LoadTSConfig(filepath.Join(root, "tsconfig.json"))
	assert.ErrorIs(t, err, ErrInvalidTSConfig)
}

func TestTSConfig_Match(t *testing.T) {
	cfg := &TSConfig{Paths: []PathMapping{
		{Pattern: "*", Targets: []string{"/r/*"}},
		{Pattern: "ui/*", Targets: []string{"/r/ui/*"}},
		{Pattern: "ui/shared/*", Targets: []string{"/r/shared/*"}},
		{Pattern: "jquery", Targets: []string{"/r/vendor/jquery.js"}},
		{Pattern: "*.svg", Targets: []string{"/r/assets/*.svg"}},
	}}

	tests := []struct {
		spec string
		want []string
	}{
		{"ui/shared/Button", []string{filepath.FromSlash("/r/shared/Button")}},
		{"ui/pages/Home", []string{filepath.FromSlash("/r/ui/pages/Home")}},
		{"jquery", []string{"/r/vendor/jquery.js"}},
		{"lib/x", []string{filepath.FromSlash("/r/lib/x")}},
		{"logo.svg", []string{filepath.FromSlash("/r/logo.svg")}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.match(tt.spec))
		})
	}

	var nilCfg *TSConfig
	assert.Nil(t, nilCfg.match("anything"))
}
