// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve maps import specifiers to files, the way the production
// TypeScript build does.
//
// # Resolution Order
//
//  1. "node:" builtins → External
//  2. relative ("./", "../") and absolute specifiers → file lookup
//  3. tsconfig "paths" aliases (exact, then longest wildcard prefix) → file lookup
//  4. tsconfig "baseUrl" → file lookup
//  5. bare runtime builtins ("fs", "path/posix") → External
//  6. package under an ancestor node_modules → External
//  7. anything else → Unresolved
//
// # File Lookup
//
// For a base path B: B itself, B+ext for each configured extension, the
// TypeScript source for an emitted-JS name (B.js → B.ts, B.tsx), then
// B/index+ext. A lookup that lands outside the root or inside node_modules
// is External.
//
// Resolve never fails: an unresolvable specifier is a value, not an error.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultExtensions is the lookup order for extensionless specifiers.
var DefaultExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mjs", ".cjs", ".json"}

// DefaultCacheSize bounds the stat cache.
const DefaultCacheSize = 65536

// Status classifies a Resolution.
type Status int

const (
	// Unresolved means the specifier could not be mapped to anything.
	Unresolved Status = iota

	// Internal means the specifier maps to a project file.
	Internal

	// External means a vendored package or runtime builtin; not traversed.
	External
)

func (s Status) String() string {
	switch s {
	case Internal:
		return "internal"
	case External:
		return "external"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome of resolving one specifier.
type Resolution struct {
	Status Status

	// Path is the resolved absolute file for Internal, the package or file
	// location for External when known, and "" otherwise.
	Path string
}

// Resolver maps a specifier, as written in fromFile, to a Resolution.
type Resolver interface {
	Resolve(specifier, fromFile string) Resolution
}

// Options configures a TSResolver.
type Options struct {
	// Root is the absolute project root.
	Root string

	// TSConfigPath is the tsconfig.json to load. Missing is not an error.
	TSConfigPath string

	// Extensions overrides DefaultExtensions.
	Extensions []string

	// CacheSize bounds the stat cache. Default: DefaultCacheSize.
	CacheSize int

	Logger *slog.Logger
}

// fileKind is a cached stat result.
type fileKind uint8

const (
	kindMissing fileKind = iota
	kindFile
	kindDir
)

// TSResolver implements Resolver for TypeScript/JavaScript projects.
//
// # Thread Safety
//
// TSResolver is safe for concurrent use. The stat cache is shared by all
// callers for the lifetime of the resolver, which is one run.
type TSResolver struct {
	root       string
	tsconfig   *TSConfig
	extensions []string
	stats      *lru.Cache[string, fileKind]
	logger     *slog.Logger
}

// New creates a TSResolver.
//
// # Outputs
//
//   - *TSResolver: The resolver.
//   - error: Non-nil if the tsconfig exists but cannot be loaded.
func New(opts Options) (*TSResolver, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("resolve: root must not be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, fileKind](size)
	if err != nil {
		return nil, fmt.Errorf("creating stat cache: %w", err)
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	r := &TSResolver{
		root:       filepath.Clean(opts.Root),
		extensions: exts,
		stats:      cache,
		logger:     logger,
	}

	if opts.TSConfigPath != "" {
		cfg, err := LoadTSConfig(opts.TSConfigPath)
		switch {
		case err == nil:
			r.tsconfig = cfg
			logger.Debug("tsconfig loaded",
				slog.String("path", cfg.Path),
				slog.String("base_url", cfg.BaseURL),
				slog.Int("paths", len(cfg.Paths)))
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("tsconfig not found, aliases disabled", slog.String("path", opts.TSConfigPath))
		default:
			return nil, err
		}
	}
	return r, nil
}

// TSConfig returns the loaded configuration, or nil.
func (r *TSResolver) TSConfig() *TSConfig {
	return r.tsconfig
}

// Resolve implements Resolver.
func (r *TSResolver) Resolve(specifier, fromFile string) Resolution {
	res := r.resolve(specifier, fromFile)
	recordResolution(res.Status)
	return res
}

func (r *TSResolver) resolve(specifier, fromFile string) Resolution {
	spec := specifier
	if i := strings.IndexByte(spec, '?'); i >= 0 {
		spec = spec[:i]
	}
	if spec == "" {
		return Resolution{Status: Unresolved}
	}
	if strings.HasPrefix(spec, "node:") {
		return Resolution{Status: External}
	}

	if isRelative(spec) || filepath.IsAbs(spec) {
		base := filepath.FromSlash(spec)
		if !filepath.IsAbs(base) {
			base = filepath.Join(filepath.Dir(fromFile), base)
		}
		if res, ok := r.lookup(base); ok {
			return res
		}
		return Resolution{Status: Unresolved}
	}

	for _, target := range r.tsconfig.match(spec) {
		if res, ok := r.lookup(target); ok {
			return res
		}
	}

	if r.tsconfig != nil && r.tsconfig.BaseURL != "" {
		if res, ok := r.lookup(filepath.Join(r.tsconfig.BaseURL, filepath.FromSlash(spec))); ok {
			return res
		}
	}

	if isBuiltin(spec) {
		return Resolution{Status: External}
	}
	if dir, ok := r.findPackage(spec, fromFile); ok {
		return Resolution{Status: External, Path: dir}
	}
	return Resolution{Status: Unresolved}
}

// lookup tries the candidate files for base in order.
func (r *TSResolver) lookup(base string) (Resolution, bool) {
	base = filepath.Clean(base)
	for _, candidate := range r.candidates(base) {
		if r.stat(candidate) == kindFile {
			return r.classify(candidate), true
		}
	}
	return Resolution{}, false
}

func (r *TSResolver) candidates(base string) []string {
	out := make([]string, 0, 2*len(r.extensions)+3)
	out = append(out, base)
	for _, ext := range r.extensions {
		out = append(out, base+ext)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	switch filepath.Ext(base) {
	case ".js":
		out = append(out, stem+".ts", stem+".tsx")
	case ".jsx":
		out = append(out, stem+".tsx")
	case ".mjs":
		out = append(out, stem+".mts")
	case ".cjs":
		out = append(out, stem+".cts")
	}
	for _, ext := range r.extensions {
		out = append(out, filepath.Join(base, "index"+ext))
	}
	return out
}

func (r *TSResolver) classify(path string) Resolution {
	if !within(r.root, path) || inNodeModules(r.root, path) {
		return Resolution{Status: External, Path: path}
	}
	return Resolution{Status: Internal, Path: path}
}

// findPackage looks for node_modules/<package> from the importing file's
// directory up to the filesystem root.
func (r *TSResolver) findPackage(spec, fromFile string) (string, bool) {
	name := packageName(spec)
	if name == "" {
		return "", false
	}
	for dir := filepath.Dir(fromFile); ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if r.stat(candidate) == kindDir {
			return candidate, true
		}
		if filepath.Dir(dir) == dir {
			return "", false
		}
	}
}

// stat returns the cached kind of path.
func (r *TSResolver) stat(path string) fileKind {
	if kind, ok := r.stats.Get(path); ok {
		return kind
	}
	kind := kindMissing
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			kind = kindDir
		} else {
			kind = kindFile
		}
	}
	r.stats.Add(path, kind)
	return kind
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// packageName returns "pkg" or "@scope/pkg" from a bare specifier.
func packageName(spec string) string {
	parts := strings.SplitN(spec, "/", 3)
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func inNodeModules(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "node_modules" {
			return true
		}
	}
	return false
}

var builtins = map[string]bool{
	"assert": true, "async_hooks": true, "buffer": true, "child_process": true,
	"cluster": true, "console": true, "constants": true, "crypto": true,
	"dgram": true, "diagnostics_channel": true, "dns": true, "domain": true,
	"events": true, "fs": true, "http": true, "http2": true, "https": true,
	"inspector": true, "module": true, "net": true, "os": true, "path": true,
	"perf_hooks": true, "process": true, "punycode": true, "querystring": true,
	"readline": true, "repl": true, "stream": true, "string_decoder": true,
	"sys": true, "timers": true, "tls": true, "trace_events": true, "tty": true,
	"url": true, "util": true, "v8": true, "vm": true, "wasi": true,
	"worker_threads": true, "zlib": true,
}

func isBuiltin(spec string) bool {
	return builtins[packageName(spec)]
}
