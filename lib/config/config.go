// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Carton components.
//
// Configuration is loaded from a single file specified by:
//   - CARTON_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Carton.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures the object store.
	Store StoreConfig `yaml:"store"`

	// Checkin configures default checkin behavior.
	Checkin CheckinConfig `yaml:"checkin"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Carton data.
	Root string `yaml:"root"`

	// Store is the object store directory.
	Store string `yaml:"store"`

	// Registry is the tag registry directory.
	Registry string `yaml:"registry"`

	// Artifacts is where artifacts are checked out; symlinks targeting
	// it are recognized as artifact references during scanning.
	Artifacts string `yaml:"artifacts"`
}

// StoreConfig configures the object store.
type StoreConfig struct {
	// Compression selects the object compression: "none", "lz4", or
	// "zstd". Default: zstd.
	Compression string `yaml:"compression"`

	// PoolSize is the SQLite index connection pool size.
	PoolSize int `yaml:"pool_size"`
}

// CheckinConfig configures default checkin behavior.
type CheckinConfig struct {
	// Parallelism bounds concurrent object writes during compilation.
	// Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`

	// Ignore is a list of filepath.Match patterns applied to entry
	// base names during scanning, in addition to any given per run.
	Ignore []string `yaml:"ignore"`
}

// Default returns the built-in configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "carton")

	return &Config{
		Paths: PathsConfig{
			Root:      defaultRoot,
			Store:     filepath.Join(defaultRoot, "store"),
			Registry:  filepath.Join(defaultRoot, "registry"),
			Artifacts: filepath.Join(defaultRoot, "artifacts"),
		},
		Store: StoreConfig{
			Compression: "zstd",
		},
		Checkin: CheckinConfig{
			Ignore: []string{".git"},
		},
	}
}

// Load loads configuration from the CARTON_CONFIG environment
// variable. If the variable is not set, the built-in defaults are
// used: unlike most components' settings, an absent config file is an
// ordinary single-user setup, not an error.
func Load() (*Config, error) {
	configPath := os.Getenv("CARTON_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CARTON_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CARTON_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Store = expandVars(c.Paths.Store, vars)
	c.Paths.Registry = expandVars(c.Paths.Registry, vars)
	c.Paths.Artifacts = expandVars(c.Paths.Artifacts, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Store == "" {
		errs = append(errs, fmt.Errorf("paths.store is required"))
	}
	if c.Paths.Registry == "" {
		errs = append(errs, fmt.Errorf("paths.registry is required"))
	}

	switch c.Store.Compression {
	case "", "none", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("store.compression must be one of: none, lz4, zstd"))
	}
	if c.Store.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("store.pool_size must not be negative"))
	}
	if c.Checkin.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("checkin.parallelism must not be negative"))
	}

	return errors.Join(errs...)
}
