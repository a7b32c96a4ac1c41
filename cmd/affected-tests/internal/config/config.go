// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the affected-tests configuration.
//
// Sources, lowest precedence first:
//
//  1. the embedded default.yaml
//  2. affected-tests.yaml at the project root, or the --config file
//  3. command-line flags, applied by the caller
//
// The invocation environment (CI, GITHUB_BASE_REF, GITHUB_SHA) is read
// from the process, optionally seeded from a .env file that never
// overrides variables already set.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/override"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/resolve"
	"github.com/AleutianAI/affected-tests/cmd/affected-tests/internal/selection"
)

const (
	// FileName is the project-level configuration file.
	FileName = "affected-tests.yaml"

	// MaxConfigFileSize is the maximum accepted configuration file size (1MB).
	MaxConfigFileSize = 1024 * 1024
)

//go:embed default.yaml
var defaultYAML []byte

var configLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "affected_tests_config_loads_total",
	Help: "Configuration loads by source",
}, []string{"source"})

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("relpath", validateRelPath)
}

// validateRelPath accepts slash paths that stay inside the project root.
func validateRelPath(fl validator.FieldLevel) bool {
	return isRelPath(fl.Field().String())
}

func isRelPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return false
	}
	clean := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// Config is the effective configuration.
type Config struct {
	SentinelPath  string    `yaml:"sentinel_path" validate:"required,relpath"`
	TSConfig      string    `yaml:"tsconfig" validate:"omitempty,relpath"`
	TestRoots     []string  `yaml:"test_roots" validate:"required,min=1,dive,relpath"`
	TestPattern   string    `yaml:"test_pattern" validate:"required"`
	MaxCandidates int       `yaml:"max_candidates" validate:"gte=0"`
	CapOverflow   string    `yaml:"cap_overflow" validate:"oneof=select skip"`
	Workers       int       `yaml:"workers" validate:"gte=0,lte=1024"`
	TrunkBranch   string    `yaml:"trunk_branch" validate:"required"`
	Remote        string    `yaml:"remote" validate:"required"`
	Extensions    []string  `yaml:"extensions" validate:"required,min=1,dive,startswith=."`
	Overrides     Overrides `yaml:"overrides"`
	Telemetry     Telemetry `yaml:"telemetry"`

	// Source is the file the configuration was read from, or "" for the
	// embedded defaults.
	Source string `yaml:"-"`
}

// Overrides configures the override policy.
type Overrides struct {
	RunAllDirs        []string    `yaml:"run_all_dirs" validate:"dive,relpath"`
	RunAllFiles       []string    `yaml:"run_all_files" validate:"dive,relpath"`
	UntraceableAssets []AssetRule `yaml:"untraceable_assets" validate:"dive"`
}

// AssetRule is one untraceable asset directory and its manifest.
type AssetRule struct {
	Dir      string `yaml:"dir" validate:"required,relpath"`
	Manifest string `yaml:"manifest" validate:"omitempty,relpath"`
}

// Telemetry selects exporters.
type Telemetry struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"omitempty,hostname_port"`
	MetricsFile    string `yaml:"metrics_file"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultYAML, cfg); err != nil {
		panic(fmt.Sprintf("embedded default.yaml is invalid: %v", err))
	}
	return cfg
}

// Load returns the effective file configuration.
//
// # Inputs
//
//   - path: Explicit configuration file; must exist when set.
//   - root: Project root, searched for FileName when path is "".
//
// # Outputs
//
//   - *Config: Defaults overlaid with the file, validated.
//   - error: ErrInvalidConfig, or a read error for an explicit path.
func Load(path, root string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	data, err := readLimited(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		configLoads.WithLabelValues("default").Inc()
		return cfg, cfg.Validate()
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	cfg.Source = path
	configLoads.WithLabelValues("file").Inc()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PeekSentinelPath returns the sentinel_path set in the configuration
// file, or "" when the file is missing, unreadable or does not set a
// valid one. Unlike Load it ignores every other key, so it still answers
// for a file that Load rejects.
func PeekSentinelPath(path, root string) string {
	if path == "" {
		path = filepath.Join(root, FileName)
	}
	data, err := readLimited(path)
	if err != nil {
		return ""
	}
	var peek struct {
		SentinelPath string `yaml:"sentinel_path"`
	}
	if err := yaml.Unmarshal(data, &peek); err != nil {
		return ""
	}
	if !isRelPath(peek.SentinelPath) {
		return ""
	}
	return peek.SentinelPath
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrInvalidConfig, path, info.Size(), MaxConfigFileSize)
	}
	return os.ReadFile(path)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Abs resolves a root-relative configuration path.
func Abs(root, rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}

// Rules converts the overrides into policy rules.
func (o Overrides) Rules() override.Rules {
	rules := override.Rules{
		RunAllDirs:  append([]string(nil), o.RunAllDirs...),
		RunAllFiles: append([]string(nil), o.RunAllFiles...),
	}
	for _, a := range o.UntraceableAssets {
		rules.UntraceableAssets = append(rules.UntraceableAssets, override.AssetRule{Dir: a.Dir, Manifest: a.Manifest})
	}
	return rules
}

// ResolveOptions builds resolver options for root.
func (c *Config) ResolveOptions(root string) resolve.Options {
	return resolve.Options{
		Root:         root,
		TSConfigPath: Abs(root, c.TSConfig),
		Extensions:   append([]string(nil), c.Extensions...),
	}
}

// SelectionOptions builds engine options for root.
func (c *Config) SelectionOptions(root string) selection.Options {
	return selection.Options{
		Root:          root,
		Workers:       c.Workers,
		MaxCandidates: c.MaxCandidates,
		Overflow:      selection.CapOverflow(c.CapOverflow),
	}
}

// DiscoverOptions builds discovery options for root.
func (c *Config) DiscoverOptions(root string) selection.DiscoverOptions {
	return selection.DiscoverOptions{
		Root:      root,
		TestRoots: append([]string(nil), c.TestRoots...),
		Pattern:   c.TestPattern,
	}
}
