// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/carton-build/carton/cmd/carton/cli"
	"github.com/carton-build/carton/lib/checkin"
	"github.com/carton-build/carton/lib/config"
)

func checkinCommand() *cli.Command {
	var (
		configPath    string
		destructive   bool
		deterministic bool
		locked        bool
		ignore        []string
		verbose       bool
	)

	return &cli.Command{
		Name:    "checkin",
		Summary: "Check a filesystem tree into the object store.",
		Usage:   "carton checkin [flags] <path>",
		Examples: []cli.Example{
			{
				Description: "Check in the current directory",
				Command:     "carton checkin .",
			},
			{
				Description: "Reproduce a previous resolution exactly",
				Command:     "carton checkin --locked .",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("checkin", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.BoolVar(&destructive, "destructive", false,
				"reference file contents in place instead of copying them")
			flags.BoolVar(&deterministic, "deterministic", false,
				"omit timestamps so the output depends only on the inputs")
			flags.BoolVar(&locked, "locked", false,
				"resolve tags exclusively against the existing lockfile")
			flags.StringSliceVar(&ignore, "ignore", nil,
				"glob patterns of entry names to exclude")
			flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("checkin takes exactly one path argument")
			}
			root := args[0]

			logger := cli.NewCommandLogger(verbose).With("command", "checkin")
			env, err := setup(configPath, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			workspace, err := config.LoadWorkspace(root)
			if err != nil {
				return err
			}

			result, err := checkin.Checkin(context.Background(), root, checkin.Options{
				Destructive:       destructive,
				Deterministic:     deterministic,
				Ignore:            append(append([]string(nil), env.cfg.Checkin.Ignore...), append(ignore, workspace.Ignore...)...),
				Locked:            locked,
				LocalDependencies: workspace.LocalDependencies,
			}, checkin.Config{
				Store:         env.store,
				Registry:      env.registry,
				ArtifactsPath: env.cfg.Paths.Artifacts,
				Parallelism:   env.cfg.Checkin.Parallelism,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			fmt.Println(result.Root)
			return nil
		},
	}
}
