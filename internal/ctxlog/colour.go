// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

const (
	// NoColour is the environment variable that disables colour output.
	NoColour = "NO_COLOR"
	// ForceColour is the environment variable that forces colour output.
	ForceColour = "FORCE_COLOR"

	escPrefix = "\033["
	escReset  = "\033[0m"
)

type colourCode int

const (
	fgRed       colourCode = 31
	fgYellow    colourCode = 33
	fgBlue      colourCode = 34
	fgCyan      colourCode = 36
	fgWhite     colourCode = 37
	fgHiMagenta colourCode = 95
	fgHiWhite   colourCode = 97
)

// colourEnabled reports whether stdout should receive ANSI colour codes.
func colourEnabled() bool {
	if os.Getenv(NoColour) != "" {
		return false
	}

	if os.Getenv(ForceColour) != "" {
		return true
	}

	return term.IsTerminal(int(os.Stdout.Fd()))
}

func colourize(enabled bool, s string, c colourCode) string {
	if !enabled || s == "" {
		return s
	}

	return escPrefix + strconv.Itoa(int(c)) + "m" + s + escReset
}
