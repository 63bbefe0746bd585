// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failWriter struct{}

func (failWriter) Write(_ []byte) (int, error) {
	return 0, errors.New("boom")
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer

	h := NewPrettyHandler(nil, WithDestinationWriter(&buf))
	r := slog.NewRecord(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), slog.LevelWarn, "copy done", 0)
	r.AddAttrs(slog.String("src", "/a"), slog.Int("files", 3))

	require.NoError(t, h.Handle(context.Background(), r))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[03:04:05.000] WARN: copy done {"), out)
	assert.Contains(t, out, `"src": "/a"`)
	assert.Contains(t, out, `"files": 3`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestPrettyHandler_EmptyAttrs(t *testing.T) {
	var buf bytes.Buffer

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)

	h := NewPrettyHandler(nil, WithDestinationWriter(&buf))
	require.NoError(t, h.Handle(context.Background(), r))
	assert.NotContains(t, buf.String(), "{}")

	buf.Reset()

	h = NewPrettyHandler(nil, WithDestinationWriter(&buf), WithOutputEmptyAttrs())
	require.NoError(t, h.Handle(context.Background(), r))
	assert.Contains(t, buf.String(), "{}")
}

func TestPrettyHandler_ReplaceAttrDropsTime(t *testing.T) {
	var buf bytes.Buffer

	h := NewPrettyHandler(&slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}

			return a
		},
	}, WithDestinationWriter(&buf))

	require.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "x", 0)))
	assert.True(t, strings.HasPrefix(buf.String(), "ERROR: x"), buf.String())
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewPrettyHandler(nil, WithDestinationWriter(&buf)))
	logger.With("workspace", "/tmp/w").WithGroup("copy").Warn("m", "n", 1)

	out := buf.String()
	assert.Contains(t, out, `"workspace": "/tmp/w"`)
	assert.Contains(t, out, `"copy": {`)
}

func TestPrettyHandler_Colour(t *testing.T) {
	var buf bytes.Buffer

	h := NewPrettyHandler(nil, WithDestinationWriter(&buf), WithColour())
	require.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "x", 0)))
	assert.Contains(t, buf.String(), escPrefix)
}

func TestPrettyHandler_WriteError(t *testing.T) {
	h := NewPrettyHandler(nil, WithDestinationWriter(failWriter{}))
	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "x", 0))
	assert.ErrorIs(t, err, ErrIoWrite)
}
