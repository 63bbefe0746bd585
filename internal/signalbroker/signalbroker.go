// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker subscribes to the OS signals that should stop the process.
// By default these are os.Interrupt, SIGINT, SIGTERM and SIGQUIT.
//
// Watch cancels a context when the same signal arrives twice, so the first Ctrl-C
// lets a scratch workspace clean up and the second one gives up waiting.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
)

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	os.Interrupt,
}

// New returns a channel notified of sigs, or of the termination signals when none are given.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "subscribing to signals", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Stop unsubscribes ch. No more signals are delivered to it after Stop returns.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
}
