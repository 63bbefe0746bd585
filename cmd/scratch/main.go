// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the scratch command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/scratch"
	"github.com/matt-FFFFFF/scratch/cmd/scratch/profile"
	"github.com/matt-FFFFFF/scratch/cmd/scratch/run"
	"github.com/matt-FFFFFF/scratch/cmd/scratch/tail"
	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/matt-FFFFFF/scratch/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		tail.TailCmd,
		profile.ProfileCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "scratch",
	Description: `Scratch runs a command inside a temporary working directory.
The directory is created under a root you choose, optionally seeded with a copy of the
current directory, and removed when the command finishes. Results can be copied back,
replacing the contents of the directory you started in.`,
	Usage:     "scratch run --root /tmp -- make build",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", scratch.Version, scratch.Commit)

	err := rootCmd.Run(ctx, os.Args) // Exit codes from cli.Exit are handled by the cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}

	ctxlog.Logger(ctx).Info("command completed successfully")
}
