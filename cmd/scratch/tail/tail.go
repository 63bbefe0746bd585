// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tail implements the tail command, which prints the last lines of a possibly compressed file.
package tail

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/matt-FFFFFF/scratch/internal/reverseread"
	"github.com/urfave/cli/v3"
)

const (
	linesFlag    = "lines"
	linesDefault = 10
	fileArg      = "file"
	maxPrealloc  = 1024
)

// TailCmd prints the last lines of a file.
var TailCmd = &cli.Command{
	Name:  "tail",
	Usage: "Print the last lines of a file",
	Description: `Print the last lines of a file in their original order.
Files ending in .gz, .bz2, .xz, .lzma or .zst are decompressed on the fly.
Large uncompressed files are read backwards from the end, so only the tail is read.`,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:     linesFlag,
			Aliases:  []string{"n"},
			Usage:    "Number of lines to print",
			Value:    linesDefault,
			OnlyOnce: true,
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name: fileArg,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg(fileArg)
	if name == "" {
		return cli.Exit("please specify a file", 1)
	}

	n := cmd.Int(linesFlag)
	if n < 0 {
		return cli.Exit(fmt.Sprintf("invalid number of lines: %d", n), 1)
	}

	ctxlog.Debug(ctx, "tail", "file", name, "lines", n)

	if err := Tail(cmd.Root().Writer, name, n); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

// Tail writes the last n lines of the named file to w in file order.
func Tail(w io.Writer, name string, n int) error {
	if n == 0 {
		return nil
	}

	lines := make([]string, 0, min(n, maxPrealloc))

	for line, err := range reverseread.File(name) {
		if err != nil {
			return err
		}

		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}

	slices.Reverse(lines)

	for _, line := range lines {
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}

	// the final line of a file may lack a terminator
	if len(lines) > 0 && !strings.HasSuffix(lines[len(lines)-1], "\n") {
		_, err := io.WriteString(w, "\n")
		return err
	}

	return nil
}
