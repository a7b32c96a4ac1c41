// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package imports extracts static module specifiers from TypeScript and
// JavaScript sources using tree-sitter.
//
// Recognised forms:
//
//	import x from 'a'            import_statement
//	import 'a'                   import_statement (side effect)
//	import type { T } from 'a'   import_statement
//	export { x } from 'a'        export_statement
//	export * from 'a'            export_statement
//	import x = require('a')      import_require_clause
//	require('a')                 call_expression
//	import('a')                  call_expression (dynamic)
//
// Only literal specifiers are reported. Computed arguments such as
// import(name) or template strings with substitutions are ignored.
// Files whose extension has no grammar (svg, css, json, images) are
// leaves; Supports reports false for them.
package imports

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// DefaultMaxFileSize is the default size limit for scanned files (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Kind is the syntactic form an import was found in.
type Kind string

const (
	KindImport        Kind = "import"
	KindExport        Kind = "export"
	KindImportEquals  Kind = "import_equals"
	KindRequire       Kind = "require"
	KindDynamicImport Kind = "dynamic_import"
)

// Import is one module specifier found in a file.
type Import struct {
	// Specifier is the literal module string, e.g. "./ChatItem".
	Specifier string

	// Kind is the syntax the specifier appeared in.
	Kind Kind

	// Line is the 1-based line of the import.
	Line int
}

// grammar identifies a tree-sitter language.
type grammar int

const (
	grammarNone grammar = iota
	grammarTypeScript
	grammarTSX
	grammarJavaScript
)

// grammarFor picks a grammar by file extension.
func grammarFor(path string) grammar {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return grammarTypeScript
	case ".tsx":
		return grammarTSX
	case ".js", ".jsx", ".mjs", ".cjs":
		return grammarJavaScript
	default:
		return grammarNone
	}
}

func (g grammar) language() *sitter.Language {
	switch g {
	case grammarTypeScript:
		return typescript.GetLanguage()
	case grammarTSX:
		return tsx.GetLanguage()
	case grammarJavaScript:
		return javascript.GetLanguage()
	default:
		return nil
	}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMaxFileSize sets the maximum file size the scanner accepts.
//
// Example:
//
//	scanner := imports.NewScanner(imports.WithMaxFileSize(1 << 20))
func WithMaxFileSize(bytes int64) Option {
	return func(s *Scanner) {
		if bytes > 0 {
			s.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scanner extracts import specifiers from source files.
//
// # Thread Safety
//
// Scanner is safe for concurrent use. A new tree-sitter parser is created
// per call.
type Scanner struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Supports reports whether path has a grammar. Unsupported files have no
// outgoing imports.
func (s *Scanner) Supports(path string) bool {
	return grammarFor(path) != grammarNone
}

// ScanFile reads path and scans it.
//
// # Outputs
//
//   - []Import: Unique specifiers in order of first appearance.
//   - error: *ScanError wrapping the read or parse failure.
func (s *Scanner) ScanFile(ctx context.Context, path string) ([]Import, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ScanError{Path: path, Err: err}
	}
	if info.Size() > s.maxFileSize {
		return nil, &ScanError{Path: path, Err: fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, info.Size(), s.maxFileSize)}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ScanError{Path: path, Err: err}
	}
	found, err := s.Scan(ctx, path, content)
	if err != nil {
		return nil, &ScanError{Path: path, Err: err}
	}
	return found, nil
}

// Scan parses content as the language implied by path's extension.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - path: File path; only its extension is used.
//   - content: Source bytes.
//
// # Outputs
//
//   - []Import: Unique specifiers in order of first appearance. Nil for
//     unsupported files.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a parse/cancel error.
func (s *Scanner) Scan(ctx context.Context, path string, content []byte) ([]Import, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan canceled before start: %w", err)
	}

	g := grammarFor(path)
	if g == grammarNone {
		return nil, nil
	}
	if int64(len(content)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), s.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	start := time.Now()
	parser := sitter.NewParser()
	parser.SetLanguage(g.language())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordScanMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}
	if root.HasError() {
		s.logger.Debug("source contains syntax errors", slog.String("file", path))
	}

	found := extract(root, content)
	recordScanMetrics(ctx, time.Since(start), len(found), true)
	return found, nil
}

// extract walks the whole tree; require() and import() may be nested
// anywhere in an expression.
func extract(root *sitter.Node, content []byte) []Import {
	var found []Import
	seen := make(map[string]bool)
	add := func(spec string, kind Kind, node *sitter.Node) {
		if spec == "" || seen[spec] {
			return
		}
		seen[spec] = true
		found = append(found, Import{
			Specifier: spec,
			Kind:      kind,
			Line:      int(node.StartPoint().Row) + 1,
		})
	}

	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node.Type() {
		case "import_statement":
			if src := node.ChildByFieldName("source"); src != nil {
				add(stringContent(src, content), KindImport, node)
			}
		case "import_require_clause":
			add(stringContent(requireClauseSource(node), content), KindImportEquals, node)
		case "export_statement":
			if src := node.ChildByFieldName("source"); src != nil {
				add(stringContent(src, content), KindExport, node)
			}
		case "call_expression":
			if spec, kind, ok := callSpecifier(node, content); ok {
				add(spec, kind, node)
			}
		}

		// Push children in reverse so they pop in source order.
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			if child := node.NamedChild(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return found
}

// requireClauseSource returns the string node of `x = require('a')`.
func requireClauseSource(node *sitter.Node) *sitter.Node {
	if src := node.ChildByFieldName("source"); src != nil {
		return src
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == "string" {
			return child
		}
	}
	return nil
}

// callSpecifier recognises require('a') and import('a').
func callSpecifier(node *sitter.Node, content []byte) (string, Kind, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return "", "", false
	}

	var kind Kind
	switch {
	case fn.Type() == "import":
		kind = KindDynamicImport
	case fn.Type() == "identifier" && fn.Content(content) == "require":
		kind = KindRequire
	default:
		return "", "", false
	}

	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", "", false
	}
	arg := args.NamedChild(0)
	switch arg.Type() {
	case "string":
		return stringContent(arg, content), kind, true
	case "template_string":
		for i := 0; i < int(arg.NamedChildCount()); i++ {
			if arg.NamedChild(i).Type() == "template_substitution" {
				return "", "", false
			}
		}
		return strings.Trim(arg.Content(content), "`"), kind, true
	default:
		return "", "", false
	}
}

// stringContent returns the unquoted value of a string node.
func stringContent(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string_fragment", "escape_sequence":
			b.WriteString(child.Content(content))
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	return strings.Trim(node.Content(content), `"'`)
}
