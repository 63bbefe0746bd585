// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package reverseread iterates over the lines of a file from the last line to the first.
//
// Each line is yielded with its original terminator ("\n" or "\r\n"); only a final line
// without a terminator is yielded bare. Inputs that can seek and are at least the
// configured memory limit are read backwards block by block. Everything else,
// including compressed files, is read into memory first.
package reverseread

import (
	"bytes"
	"errors"
	"io"
	"iter"

	"github.com/matt-FFFFFF/scratch/internal/zopen"
)

const (
	// DefaultBlockSize is the size of each backwards read.
	DefaultBlockSize = 4096
	// DefaultMaxMemory is the input size from which seekable inputs are read backwards.
	DefaultMaxMemory = 4_000_000
)

// ErrInvalidOption is returned for a non-positive block size or memory limit.
var ErrInvalidOption = errors.New("block size and max memory must be positive")

type config struct {
	blockSize int64
	maxMem    int64
}

// Option configures Lines and File.
type Option func(c *config)

// WithBlockSize sets the size of each backwards read.
func WithBlockSize(n int64) Option {
	return func(c *config) {
		c.blockSize = n
	}
}

// WithMaxMemory sets the input size from which seekable inputs are read backwards.
func WithMaxMemory(n int64) Option {
	return func(c *config) {
		c.maxMem = n
	}
}

// Lines yields the lines of r in reverse order. Iteration stops after the first error.
func Lines(r io.Reader, opts ...Option) iter.Seq2[string, error] {
	c := config{blockSize: DefaultBlockSize, maxMem: DefaultMaxMemory}
	for _, opt := range opts {
		opt(&c)
	}

	return func(yield func(string, error) bool) {
		if c.blockSize <= 0 || c.maxMem <= 0 {
			yield("", ErrInvalidOption)
			return
		}

		if rs, ok := r.(io.ReadSeeker); ok {
			size, err := rs.Seek(0, io.SeekEnd)
			if err != nil {
				yield("", err)
				return
			}

			if size >= c.maxMem {
				backwards(rs, size, c.blockSize, yield)
				return
			}

			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				yield("", err)
				return
			}
		}

		data, err := io.ReadAll(r)
		if err != nil {
			yield("", err)
			return
		}

		emit(data, yield)
	}
}

// File yields the lines of name in reverse order, decompressing by extension.
func File(name string, opts ...Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var (
			r   io.ReadCloser
			err error
		)

		if zopen.IsCompressed(name) {
			r, err = zopen.Open(name)
		} else {
			r, err = zopen.FsFactory().Open(name)
		}

		if err != nil {
			yield("", err)
			return
		}

		defer r.Close() //nolint:errcheck

		for line, err := range Lines(r, opts...) {
			if !yield(line, err) {
				return
			}
		}
	}
}

// emit yields the lines held in data, last first.
func emit(data []byte, yield func(string, error) bool) {
	for len(data) > 0 {
		i := bytes.LastIndexByte(data[:len(data)-1], '\n')
		if !yield(string(data[i+1:]), nil) {
			return
		}

		data = data[:i+1]
	}
}

// backwards reads rs from the end in blocks of blockSize. tail always holds the
// unyielded bytes from pos up to a line boundary.
func backwards(rs io.ReadSeeker, size, blockSize int64, yield func(string, error) bool) {
	var tail []byte

	pos := size

	for {
		if len(tail) > 0 {
			if i := bytes.LastIndexByte(tail[:len(tail)-1], '\n'); i >= 0 {
				if !yield(string(tail[i+1:]), nil) {
					return
				}

				tail = tail[:i+1]

				continue
			}
		}

		if pos == 0 {
			if len(tail) > 0 {
				yield(string(tail), nil)
			}

			return
		}

		n := min(blockSize, pos)
		pos -= n

		block := make([]byte, n, n+int64(len(tail)))
		if _, err := rs.Seek(pos, io.SeekStart); err != nil {
			yield("", err)
			return
		}

		if _, err := io.ReadFull(rs, block); err != nil {
			yield("", err)
			return
		}

		tail = append(block, tail...)
	}
}
