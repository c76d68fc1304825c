// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/carton-build/carton/cmd/carton/cli"
	"github.com/carton-build/carton/lib/checkout"
	"github.com/carton-build/carton/lib/object"
)

func checkoutCommand() *cli.Command {
	var (
		configPath string
		outPath    string
		verbose    bool
	)

	return &cli.Command{
		Name:    "checkout",
		Summary: "Materialize a stored artifact onto the filesystem.",
		Usage:   "carton checkout [flags] <id>",
		Examples: []cli.Example{
			{
				Description: "Check an artifact out into the artifacts directory",
				Command:     "carton checkout dir_4f2a…",
			},
			{
				Description: "Check an artifact out to an explicit path",
				Command:     "carton checkout --out ./restored dir_4f2a…",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&outPath, "out", "",
				"destination path (default: under the artifacts directory)")
			flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("checkout takes exactly one artifact id argument")
			}
			id, err := object.ParseID(args[0])
			if err != nil {
				return err
			}

			logger := cli.NewCommandLogger(verbose).With("command", "checkout")
			env, err := setup(configPath, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			path := outPath
			if path == "" {
				path = filepath.Join(env.cfg.Paths.Artifacts, id.String())
			}

			err = checkout.Checkout(context.Background(), id, path, checkout.Config{
				Store:         env.store,
				ArtifactsPath: env.cfg.Paths.Artifacts,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			fmt.Println(path)
			return nil
		},
	}
}
