// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"bytes"
	"context"
	"os"
	"sync"
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

func startWatch(ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc) *sync.WaitGroup {
	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel)
	}()

	return &wg
}

func TestWatch_FirstSignalNoCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx = ctxlog.NewWithWriter(ctx, &bytes.Buffer{})
	sigCh := make(chan os.Signal, 1)
	wg := startWatch(ctx, sigCh, cancel)

	sigCh <- os.Interrupt

	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, ctx.Err(), "context should not be cancelled after first signal")

	close(sigCh)
	wg.Wait()
}

func TestWatch_SecondSignalCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx = ctxlog.NewWithWriter(ctx, &bytes.Buffer{})
	sigCh := make(chan os.Signal, 2)
	wg := startWatch(ctx, sigCh, cancel)

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	wg.Wait()
	require.Error(t, ctx.Err())

	_, ok := <-sigCh
	assert.False(t, ok, "signal channel should be closed after second signal")
}

func TestWatch_DifferentSignalsNoCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx = ctxlog.NewWithWriter(ctx, &bytes.Buffer{})
	sigCh := make(chan os.Signal, 2)
	wg := startWatch(ctx, sigCh, cancel)

	sigCh <- syscall.SIGTERM
	sigCh <- syscall.SIGQUIT

	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, ctx.Err())

	close(sigCh)
	wg.Wait()
}

func TestNewAndStop(t *testing.T) {
	ctx := ctxlog.NewWithWriter(context.Background(), &bytes.Buffer{})
	ch := New(ctx, syscall.SIGUSR1)

	require.NotNil(t, ch)
	assert.Equal(t, 1, cap(ch))

	Stop(ch)
}
