// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("os/signal.signal_recv"),
		goleak.IgnoreAnyFunction("os/signal.loop"),
	)
}

func quietCtx() context.Context {
	return ctxlog.NewWithWriter(context.Background(), &bytes.Buffer{})
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		exitCode int
	}{
		{name: "success", script: "exit 0", exitCode: 0},
		{name: "failure", script: "exit 3", exitCode: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Command{Path: "sh", Args: []string{"-c", tt.script}, sigCh: make(chan os.Signal)}
			res := c.Run(quietCtx())

			require.NoError(t, res.Error)
			assert.Equal(t, tt.exitCode, res.ExitCode)
			assert.Equal(t, tt.exitCode == 0, res.Success())
		})
	}
}

func TestRun_OutputDirAndEnv(t *testing.T) {
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer

	c := &Command{
		Path:   "sh",
		Args:   []string{"-c", `pwd; echo "$SCRATCH_RUNNER_TEST"; echo oops >&2`},
		Dir:    dir,
		Env:    map[string]string{"SCRATCH_RUNNER_TEST": "hello"},
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	}

	res := c.Run(quietCtx())
	require.True(t, res.Success(), "error: %v", res.Error)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, "hello", lines[1])
	assert.Equal(t, "oops\n", stderr.String())
}

func TestRun_MissingExecutable(t *testing.T) {
	c := &Command{Path: "scratch-definitely-not-a-real-binary"}
	res := c.Run(quietCtx())

	assert.Equal(t, -1, res.ExitCode)
	assert.ErrorIs(t, res.Error, ErrCouldNotStartProcess)
}

func TestRun_BadDirectory(t *testing.T) {
	c := &Command{Path: "sh", Args: []string{"-c", "true"}, Dir: filepath.Join(t.TempDir(), "missing"), sigCh: make(chan os.Signal)}
	res := c.Run(quietCtx())

	assert.Equal(t, -1, res.ExitCode)
	assert.ErrorIs(t, res.Error, ErrCouldNotStartProcess)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(quietCtx(), 100*time.Millisecond)
	defer cancel()

	c := &Command{Path: "sleep", Args: []string{"10"}, sigCh: make(chan os.Signal)}

	start := time.Now()
	res := c.Run(ctx)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, -1, res.ExitCode)
	assert.ErrorIs(t, res.Error, ErrTimeoutExceeded)
}

func TestRun_SignalForwarded(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	c := &Command{Path: "sleep", Args: []string{"10"}, sigCh: sigCh}

	go func() {
		time.Sleep(100 * time.Millisecond)
		sigCh <- syscall.SIGTERM
	}()

	res := c.Run(quietCtx())

	assert.Equal(t, -1, res.ExitCode)
	assert.ErrorIs(t, res.Error, ErrSignalReceived)
	assert.NotErrorIs(t, res.Error, ErrDuplicateSignalReceived)
}

func TestRun_DuplicateSignalKills(t *testing.T) {
	sigCh := make(chan os.Signal, 2)
	c := &Command{Path: "sh", Args: []string{"-c", `trap "" TERM; sleep 10`}, sigCh: sigCh}

	go func() {
		time.Sleep(100 * time.Millisecond)
		sigCh <- syscall.SIGTERM
		time.Sleep(50 * time.Millisecond)
		sigCh <- syscall.SIGTERM
	}()

	res := c.Run(quietCtx())

	assert.Equal(t, -1, res.ExitCode)
	assert.ErrorIs(t, res.Error, ErrDuplicateSignalReceived)
}

func TestRun_DefaultSignalBroker(t *testing.T) {
	c := &Command{Path: "sh", Args: []string{"-c", "exit 0"}}
	res := c.Run(quietCtx())

	assert.True(t, res.Success())
}
