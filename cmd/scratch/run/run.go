// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the run command, which executes a process inside a scratch workspace.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/matt-FFFFFF/scratch/internal/filelock"
	"github.com/matt-FFFFFF/scratch/internal/profile"
	"github.com/matt-FFFFFF/scratch/internal/runner"
	"github.com/matt-FFFFFF/scratch/internal/workspace"
	"github.com/urfave/cli/v3"
)

const (
	rootFlag        = "root"
	linkFlag        = "link"
	copyInFlag      = "copy-in"
	copyOutFlag     = "copy-out"
	fileFlag        = "file"
	lockFlag        = "lock"
	lockTimeoutFlag = "lock-timeout"
	cliExitStr      = ""
)

var (
	// ErrGetProfile is returned when the profile cannot be fetched.
	ErrGetProfile = errors.New("failed to get profile")
	// ErrRun is returned when the workspace or the process could not be managed.
	ErrRun = errors.New("failed to run command in scratch workspace")
)

// RunCmd is the command that runs a process inside a scratch workspace.
var RunCmd = &cli.Command{
	Name:  "run",
	Usage: "Run a command inside a temporary working directory",
	Description: `Run a command inside a temporary working directory created under --root.
If the root does not exist the command runs in the current directory instead.

With --copy-in the current directory is copied into the workspace first.
With --copy-out the contents of the current directory are replaced by the contents of
the workspace when the command finishes. With --link a symbolic link named scratch_link
pointing at the workspace is created in the current directory while the command runs.

Settings can be read from a YAML or HCL profile given with --file. Profile URLs use
Hashicorp's go-getter syntax, see https://github.com/hashicorp/go-getter.
Flags and the command line override the profile.

The exit code of the command becomes the exit code of scratch.
`,
	ArgsUsage: "-- COMMAND [ARGS...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      rootFlag,
			Aliases:   []string{"r"},
			Usage:     "Directory in which the temporary workspace is created",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.BoolFlag{
			Name:        linkFlag,
			Usage:       "Publish a scratch_link symbolic link to the workspace in the current directory",
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.BoolFlag{
			Name:        copyInFlag,
			Usage:       "Copy the current directory into the workspace before running",
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.BoolFlag{
			Name:        copyOutFlag,
			Usage:       "Replace the current directory with the workspace contents afterwards",
			DefaultText: "false",
			OnlyOnce:    true,
		},
		&cli.StringFlag{
			Name:    fileFlag,
			Aliases: []string{"f"},
			Usage: "Specify the URL of a YAML or HCL profile. " +
				"Supports Hashicorp's go-getter syntax for fetching files from various sources.",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:      lockFlag,
			Usage:     "Hold an exclusive lock on this path while the command runs",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.DurationFlag{
			Name:     lockTimeoutFlag,
			Usage:    "How long to wait for the lock",
			Value:    filelock.DefaultTimeout,
			OnlyOnce: true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running run command")

	p := new(profile.Profile)

	if u := cmd.String(fileFlag); u != "" {
		data, err := getURL(ctx, u)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		p, err = profile.Decode(profileName(u), data)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to decode profile %s: %s", u, err.Error()))
			return cli.Exit(cliExitStr, 1)
		}
	}

	applyFlags(cmd, p)

	if err := p.Validate(); err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, 1)
	}

	code, err := execute(ctx, p, cmd.Root().Writer, cmd.Root().ErrWriter)
	if err != nil {
		logger.Error(err.Error())

		if code == 0 {
			code = 1
		}
	}

	if code != 0 {
		return cli.Exit(cliExitStr, code)
	}

	return nil
}

// applyFlags overrides profile settings with the flags that were set on the command line.
func applyFlags(cmd *cli.Command, p *profile.Profile) {
	if cmd.IsSet(rootFlag) {
		p.Root = cmd.String(rootFlag)
	}

	if cmd.IsSet(linkFlag) {
		p.Link = cmd.Bool(linkFlag)
	}

	if cmd.IsSet(copyInFlag) {
		p.CopyIn = cmd.Bool(copyInFlag)
	}

	if cmd.IsSet(copyOutFlag) {
		p.CopyOut = cmd.Bool(copyOutFlag)
	}

	if cmd.IsSet(lockFlag) {
		p.Lock = cmd.String(lockFlag)
	}

	if cmd.IsSet(lockTimeoutFlag) {
		p.LockTimeout = cmd.Duration(lockTimeoutFlag).String()
	}

	if args := cmd.Args().Slice(); len(args) > 0 {
		p.Command = args
	}
}

// execute runs the profile's command in a scratch workspace, holding the profile's lock if it names one.
// It returns the exit code of the process, or -1 if it did not run to completion.
func execute(ctx context.Context, p *profile.Profile, stdout, stderr io.Writer) (int, error) {
	code := -1

	body := func(ctx context.Context) error {
		return workspace.Do(ctx, p.Root, func(ctx context.Context, dir string) error {
			c := &runner.Command{
				Path:   p.Command[0],
				Args:   p.Command[1:],
				Dir:    dir,
				Env:    p.Env,
				Stdout: stdout,
				Stderr: stderr,
			}

			res := c.Run(ctx)
			code = res.ExitCode

			ctxlog.Debug(ctx, "run", "exitCode", res.ExitCode, "duration", res.Duration)

			return res.Error
		}, p.WorkspaceOptions()...)
	}

	var err error

	if p.Lock == "" {
		err = body(ctx)
	} else {
		timeout, terr := p.LockTimeoutDuration()
		if terr != nil {
			return code, errors.Join(ErrRun, terr)
		}

		lock, lerr := filelock.New(p.Lock, filelock.WithTimeout(timeout))
		if lerr != nil {
			return code, errors.Join(ErrRun, lerr)
		}

		err = lock.With(ctx, body)
	}

	if err != nil {
		return code, errors.Join(ErrRun, err)
	}

	return code, nil
}

// profileName returns the file name of a profile URL, used to pick the decoder.
func profileName(url string) string {
	url, _, _ = strings.Cut(url, goGetterRefSeparator)

	return filepath.Base(url)
}

// getURL retrieves the content from the specified URL using Hashicorp's go-getter.
// It removes the temporary file after reading its content.
func getURL(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrGetProfile
	}

	tmpDir, err := os.MkdirTemp("", "scratch-getter-*")
	if err != nil {
		return nil, errors.Join(ErrGetProfile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Join(ErrGetProfile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	var fileName string
	// If it's not a local file URL, we need to download the directory and read the file from there
	// https://github.com/hashicorp/go-getter/issues/98
	if ok, err := getter.Detect(req, &getter.FileGetter{}); !ok || err != nil {
		if err != nil {
			return nil, errors.Join(ErrGetProfile, err)
		}

		var newURL string

		newURL, fileName = splitFileNameFromGetterURL(url)
		if newURL == "" || fileName == "" {
			return nil, fmt.Errorf("%w: invalid URL format: %s", ErrGetProfile, url)
		}

		req.Src = newURL
	}

	if fileName == "" {
		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrGetProfile, err)
	}

	data, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, errors.Join(ErrGetProfile, err)
	}

	return data, nil
}

const (
	goGetterPathSeparator = "//"
	goGetterRefSeparator  = "?"
	minimumGetterParts    = 3 // scheme, host and path
)

// splitFileNameFromGetterURL splits the URL into the directory and file name.
// Any ref query parameter is kept on the returned URL.
func splitFileNameFromGetterURL(url string) (string, string) {
	var ref string

	parts := strings.Split(url, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last := parts[len(parts)-1]

	if path, q, ok := strings.Cut(last, goGetterRefSeparator); ok {
		ref = q
		last = path
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	fileName := filepath.Base(last)
	parts[len(parts)-1] = filepath.Dir(last)

	if parts[len(parts)-1] == "." {
		parts = parts[:len(parts)-1]
	}

	newURL := strings.Join(parts, goGetterPathSeparator)

	if ref != "" {
		newURL += goGetterRefSeparator + ref
	}

	return newURL, fileName
}
