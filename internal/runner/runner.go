// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runner runs an external process in a given directory.
//
// The first termination signal of each type received while the process runs is
// forwarded to it; a repeated signal, or cancellation of the context, kills it.
package runner

import (
	"context"
	"errors"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/matt-FFFFFF/scratch/internal/signalbroker"
)

// waitDelay bounds how long Wait blocks on output pipes after the process has exited.
const waitDelay = 5 * time.Second

var (
	// ErrCouldNotStartProcess is returned when the executable cannot be found or started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrCouldNotKillProcess is returned when killing the process fails.
	ErrCouldNotKillProcess = errors.New("could not kill process")
	// ErrTimeoutExceeded is returned when the context ends before the process.
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	// ErrSignalReceived is returned when a forwarded signal ended the process.
	ErrSignalReceived = errors.New("signal received")
	// ErrDuplicateSignalReceived is returned when a repeated signal forced the process to be killed.
	ErrDuplicateSignalReceived = errors.New("duplicate signal received, process forcefully terminated")
)

// Command is a process to run.
type Command struct {
	Path   string            // Executable name or path, looked up in PATH when it has no separator.
	Args   []string          // Arguments, not including the executable.
	Dir    string            // Working directory; empty means the current one.
	Env    map[string]string // Added to the inherited environment.
	Stdin  io.Reader         // Defaults to os.Stdin.
	Stdout io.Writer         // Defaults to os.Stdout.
	Stderr io.Writer         // Defaults to os.Stderr.

	sigCh chan os.Signal // replaced in tests
}

// Result is the outcome of Run.
type Result struct {
	ExitCode int           // -1 when the process did not start or was killed.
	Error    error         // nil for a normal exit, whatever the exit code.
	Duration time.Duration // Wall time from start to exit.
}

// Success reports whether the process exited normally with code 0.
func (r Result) Success() bool {
	return r.Error == nil && r.ExitCode == 0
}

// Run starts the process and waits for it.
func (c *Command) Run(ctx context.Context) Result {
	logger := ctxlog.Logger(ctx).With("runnableType", "Command").With("path", c.Path)
	logger.Debug("command info", "cwd", c.Dir, "args", c.Args)

	path, err := exec.LookPath(c.Path)
	if err != nil {
		return Result{ExitCode: -1, Error: errors.Join(ErrCouldNotStartProcess, err)}
	}

	cmd := exec.Command(path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ()
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.WaitDelay = waitDelay

	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}

	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}

	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}

	sigCh := c.sigCh
	if sigCh == nil {
		sigCh = signalbroker.New(ctx)
		defer signalbroker.Stop(sigCh)
	}

	start := time.Now()

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Error: errors.Join(ErrCouldNotStartProcess, err)}
	}

	logger.Debug("process started", "pid", cmd.Process.Pid)

	waitCh := make(chan error, 1)

	go func() {
		waitCh <- cmd.Wait()
	}()

	var (
		reason  error
		forward error
	)

	seen := make(map[os.Signal]struct{})
	done := ctx.Done()

	for {
		select {
		case waitErr := <-waitCh:
			res := Result{
				ExitCode: cmd.ProcessState.ExitCode(),
				Duration: time.Since(start),
			}

			var exitErr *exec.ExitError
			if waitErr != nil && !errors.As(waitErr, &exitErr) {
				res.Error = waitErr
			}

			switch {
			case reason != nil:
				res.ExitCode = -1
				res.Error = errors.Join(res.Error, reason)
			case forward != nil && res.ExitCode != 0:
				res.Error = errors.Join(res.Error, forward)
			}

			logger.Debug("process finished", "exitCode", res.ExitCode, "duration", res.Duration)

			return res

		case s, ok := <-sigCh:
			if !ok {
				sigCh = nil
				continue
			}

			if _, dup := seen[s]; dup {
				logger.Info("received duplicate signal, killing process", "signal", s.String())
				reason = errors.Join(ErrDuplicateSignalReceived, kill(cmd))

				continue
			}

			seen[s] = struct{}{}

			logger.Info("forwarding signal", "signal", s.String())

			if err := cmd.Process.Signal(s); err != nil {
				logger.Info("failed to send signal", "signal", s.String(), "error", err)
			}

			forward = ErrSignalReceived

		case <-done:
			logger.Info("context done, killing process")

			done = nil
			reason = errors.Join(ErrTimeoutExceeded, kill(cmd))
		}
	}
}

func (c *Command) environ() []string {
	env := os.Environ()

	for _, k := range slices.Sorted(maps.Keys(c.Env)) {
		env = append(env, k+"="+c.Env[k])
	}

	return env
}

func kill(cmd *exec.Cmd) error {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Join(ErrCouldNotKillProcess, err)
	}

	return nil
}
