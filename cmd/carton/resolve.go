// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/carton-build/carton/cmd/carton/cli"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/unify"
)

func resolveCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
	)

	return &cli.Command{
		Name:    "resolve",
		Summary: "Solve the package dependencies of a stored artifact.",
		Usage:   "carton resolve [flags] <id>",
		Description: "Resolve runs the version solver over an already-stored artifact\n" +
			"and prints the version selected for each package name, without\n" +
			"checking anything in or out.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("resolve takes exactly one artifact id argument")
			}
			id, err := object.ParseID(args[0])
			if err != nil {
				return err
			}

			logger := cli.NewCommandLogger(verbose).With("command", "resolve")
			env, err := setup(configPath, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			selected, err := unify.ResolvePackages(context.Background(), env.store, env.registry, id, logger)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(selected))
			for name := range selected {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			for _, name := range names {
				t := selected[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, t.Version, t.Target.Short())
			}
			return tw.Flush()
		},
	}
}
