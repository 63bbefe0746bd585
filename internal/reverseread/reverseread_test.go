// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package reverseread

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/scratch/internal/zopen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, seq func(func(string, error) bool)) []string {
	t.Helper()

	var out []string

	for line, err := range seq {
		require.NoError(t, err)

		out = append(out, line)
	}

	return out
}

// forwardLines splits s keeping terminators, like reading a file forwards.
func forwardLines(s string) []string {
	return slices.Collect(strings.Lines(s))
}

func reversed(s []string) []string {
	c := slices.Clone(s)
	slices.Reverse(c)

	return c
}

func TestLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "single line without newline", in: "only"},
		{name: "single newline", in: "\n"},
		{name: "unix endings", in: "a\nb\nc\n"},
		{name: "missing final newline", in: "a\nb\nc"},
		{name: "windows endings", in: "a\r\nb\r\nc\r\n"},
		{name: "blank lines", in: "a\n\n\nb\n"},
	}

	for _, tt := range tests {
		want := reversed(forwardLines(tt.in))

		t.Run(tt.name+"/memory", func(t *testing.T) {
			got := collect(t, Lines(strings.NewReader(tt.in)))
			assert.Equal(t, want, got)
		})

		t.Run(tt.name+"/seek", func(t *testing.T) {
			got := collect(t, Lines(strings.NewReader(tt.in), WithMaxMemory(1), WithBlockSize(2)))
			assert.Equal(t, want, got)
		})

		t.Run(tt.name+"/plain reader", func(t *testing.T) {
			got := collect(t, Lines(bytes.NewBufferString(tt.in), WithMaxMemory(1)))
			assert.Equal(t, want, got)
		})
	}
}

func TestLines_LargeInputBackwards(t *testing.T) {
	var sb strings.Builder
	for i := range 5000 {
		fmt.Fprintf(&sb, "line %d with some padding to cross block boundaries\n", i)
	}

	in := sb.String()
	want := reversed(forwardLines(in))

	for _, block := range []int64{1, 7, 64, DefaultBlockSize, int64(len(in)) * 2} {
		t.Run(fmt.Sprintf("block %d", block), func(t *testing.T) {
			got := collect(t, Lines(strings.NewReader(in), WithMaxMemory(1024), WithBlockSize(block)))
			assert.Equal(t, want, got)
		})
	}
}

func TestLines_EarlyStop(t *testing.T) {
	var got []string

	for line, err := range Lines(strings.NewReader("1\n2\n3\n4\n"), WithMaxMemory(1), WithBlockSize(3)) {
		require.NoError(t, err)

		got = append(got, line)
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"4\n", "3\n"}, got)
}

func TestLines_InvalidOptions(t *testing.T) {
	for _, opt := range []Option{WithBlockSize(0), WithMaxMemory(-1)} {
		for _, err := range Lines(strings.NewReader("x"), opt) {
			assert.ErrorIs(t, err, ErrInvalidOption)
		}
	}
}

type failingReader struct{}

func (failingReader) Read(_ []byte) (int, error) {
	return 0, errors.New("read failed")
}

func TestLines_ReadError(t *testing.T) {
	count := 0

	for _, err := range Lines(io.MultiReader(strings.NewReader("a\n"), failingReader{})) {
		count++

		assert.EqualError(t, err, "read failed")
	}

	assert.Equal(t, 1, count)
}

func TestFile(t *testing.T) {
	in := "first\nsecond\nthird\n"
	want := []string{"third\n", "second\n", "first\n"}

	for _, ext := range []string{".log", ".gz", ".xz", ".zst"} {
		t.Run(ext, func(t *testing.T) {
			name := filepath.Join(t.TempDir(), "out"+ext)

			w, err := zopen.Create(name)
			require.NoError(t, err)

			_, err = io.WriteString(w, in)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			assert.Equal(t, want, collect(t, File(name)))
			assert.Equal(t, want, collect(t, File(name, WithMaxMemory(1), WithBlockSize(4))))
		})
	}
}

func TestFile_Missing(t *testing.T) {
	for _, err := range File(filepath.Join(t.TempDir(), "missing.txt")) {
		assert.Error(t, err)
	}
}
