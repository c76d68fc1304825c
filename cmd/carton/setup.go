// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/carton-build/carton/lib/config"
	"github.com/carton-build/carton/lib/store"
	"github.com/carton-build/carton/lib/tag"
)

// environment is the long-lived state a command needs: loaded config,
// an open store, and an open registry.
type environment struct {
	cfg      *config.Config
	store    *store.Fs
	registry *tag.FsRegistry
	logger   *slog.Logger
}

// setup loads the configuration and opens the store and registry. The
// configPath flag overrides CARTON_CONFIG when non-empty.
func setup(configPath string, logger *slog.Logger) (*environment, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	st, err := store.OpenFs(store.FsConfig{
		Root:        cfg.Paths.Store,
		Compression: compressionFor(cfg.Store.Compression),
		PoolSize:    cfg.Store.PoolSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry, err := tag.OpenFsRegistry(cfg.Paths.Registry)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	return &environment{cfg: cfg, store: st, registry: registry, logger: logger}, nil
}

func (e *environment) Close() error {
	return e.store.Close()
}

func compressionFor(name string) store.Compression {
	switch name {
	case "none":
		return store.CompressionNone
	case "lz4":
		return store.CompressionLZ4
	default:
		return store.CompressionZstd
	}
}
