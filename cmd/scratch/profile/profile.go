// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package profile implements the profile command, which prints an example run profile.
package profile

import (
	"context"
	"io"

	prof "github.com/matt-FFFFFF/scratch/internal/profile"
	"github.com/urfave/cli/v3"
)

const hclFlag = "hcl"

// ProfileCmd writes an example profile for use with run --file.
var ProfileCmd = &cli.Command{
	Name:  "profile",
	Usage: "Print an example profile for use with run --file",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:        hclFlag,
			Usage:       "Write the profile as HCL instead of YAML",
			DefaultText: "false",
			OnlyOnce:    true,
		},
	},
	Action: actionFunc,
}

func actionFunc(_ context.Context, cmd *cli.Command) error {
	if err := write(cmd.Root().Writer, cmd.Bool(hclFlag)); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

func write(w io.Writer, hcl bool) error {
	if hcl {
		return prof.Example().WriteHCL(w)
	}

	return prof.Example().WriteYAML(w)
}
