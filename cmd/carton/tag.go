// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/carton-build/carton/cmd/carton/cli"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/tag"
)

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:    "tag",
		Summary: "Publish and list registry tags.",
		Subcommands: []*cli.Command{
			tagPublishCommand(),
			tagListCommand(),
		},
	}
}

func tagPublishCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
	)

	return &cli.Command{
		Name:    "publish",
		Summary: "Publish a version of a package name.",
		Usage:   "carton tag publish [flags] <name>@<version> <artifact id>",
		Examples: []cli.Example{
			{
				Description: "Publish a checked-in tree as std 1.2.0",
				Command:     "carton tag publish std@1.2.0 dir_4f2a…",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("publish", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("publish takes a name@version and an artifact id")
			}
			pattern, err := tag.ParsePattern(args[0])
			if err != nil {
				return err
			}
			if pattern.Constraint == "" {
				return fmt.Errorf("publish needs an exact name@version, got %q", args[0])
			}
			target, err := object.ParseID(args[1])
			if err != nil {
				return err
			}

			logger := cli.NewCommandLogger(verbose).With("command", "tag/publish")
			env, err := setup(configPath, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.registry.Publish(pattern.Name, pattern.Constraint, target, time.Now()); err != nil {
				return err
			}
			fmt.Printf("published %s@%s -> %s\n", pattern.Name, pattern.Constraint, target.Short())
			return nil
		},
	}
}

func tagListCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "List tags matching a pattern.",
		Usage:   "carton tag list [flags] [<pattern>]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("list takes at most one pattern argument")
			}

			logger := cli.NewCommandLogger(verbose).With("command", "tag/list")
			env, err := setup(configPath, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			names := env.registry.Names()
			if len(args) == 1 {
				pattern, err := tag.ParsePattern(args[0])
				if err != nil {
					return err
				}
				names = []string{pattern.Name}
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			for _, name := range names {
				pattern := tag.Pattern{Name: name}
				if len(args) == 1 {
					pattern, _ = tag.ParsePattern(args[0])
				}
				tags, err := env.registry.List(context.Background(), pattern)
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintf(tw, "%s@%s\t%s\n", t.Name, t.Version, t.Target)
				}
			}
			return tw.Flush()
		},
	}
}
