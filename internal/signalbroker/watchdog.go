// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
)

// Watch reads sigCh until it is closed. The second signal of any one type closes
// sigCh and calls cancel.
func Watch(ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc) {
	seen := make(map[os.Signal]struct{})

	for sig := range sigCh {
		if _, ok := seen[sig]; ok {
			ctxlog.Info(ctx, "watchdog", "detail", "second signal of this type, cancelling", "signal", sig.String())
			close(sigCh)
			cancel()

			return
		}

		ctxlog.Info(ctx, "watchdog", "detail", "first signal of this type, waiting for cleanup", "signal", sig.String())

		seen[sig] = struct{}{}
	}
}
