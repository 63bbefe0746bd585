// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a *slog.Logger on a context.Context.
//
// The default logger writes to stdout through PrettyHandler, a console handler that
// prints a timestamp, a coloured level, the message and the remaining attributes as
// indented JSON. The level is read from the environment variable derived from the
// executable name, e.g. SCRATCH_LOG_LEVEL for a binary called "scratch".
package ctxlog
