// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/carton-build/carton/cmd/carton/cli"
	"github.com/carton-build/carton/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError
		// with the desired exit code. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	for _, argument := range os.Args[1:] {
		if argument == "--version" {
			fmt.Printf("carton %s\n", version.Info())
			return nil
		}
	}
	return root().Execute(os.Args[1:])
}

func root() *cli.Command {
	return &cli.Command{
		Name:    "carton",
		Summary: "Content-addressed artifact storage for source trees.",
		Description: "Carton checks filesystem trees into a content-addressed object\n" +
			"store, resolving package references against a tag registry, and\n" +
			"checks artifacts back out.",
		Subcommands: []*cli.Command{
			checkinCommand(),
			checkoutCommand(),
			tagCommand(),
			resolveCommand(),
		},
	}
}
