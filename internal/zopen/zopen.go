// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package zopen opens files through a decompressor or compressor chosen by file extension.
//
// Supported extensions, matched case-insensitively: .gz and .z (gzip), .bz2 (bzip2, read
// only), .xz, .lzma and .zst. Any other name is opened as a plain file.
package zopen

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Codec identifies a compression format.
type Codec int

// Known codecs.
const (
	None Codec = iota
	Gzip
	Bzip2
	XZ
	LZMA
	Zstd
)

var codecNames = map[Codec]string{
	None:  "none",
	Gzip:  "gzip",
	Bzip2: "bzip2",
	XZ:    "xz",
	LZMA:  "lzma",
	Zstd:  "zstd",
}

// String implements fmt.Stringer.
func (c Codec) String() string {
	if n, ok := codecNames[c]; ok {
		return n
	}

	return fmt.Sprintf("Codec(%d)", int(c))
}

var (
	// ErrUnsupportedWrite is returned by Create for formats that can only be read.
	ErrUnsupportedWrite = errors.New("compression format is read only")
	// ErrOpen is returned when the file or its decompressor cannot be opened.
	ErrOpen = errors.New("failed to open file")
)

// FsFactory returns the filesystem files are opened on.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// CodecFor returns the codec implied by the extension of name.
func CodecFor(name string) Codec {
	switch strings.ToUpper(filepath.Ext(name)) {
	case ".GZ", ".Z":
		return Gzip
	case ".BZ2":
		return Bzip2
	case ".XZ":
		return XZ
	case ".LZMA":
		return LZMA
	case ".ZST":
		return Zstd
	default:
		return None
	}
}

// IsCompressed reports whether name has a compressed-file extension.
func IsCompressed(name string) bool {
	return CodecFor(name) != None
}

// Open opens name for reading, decompressing as implied by its extension.
// Closing the returned reader closes the underlying file.
func Open(name string) (io.ReadCloser, error) {
	f, err := FsFactory().Open(name)
	if err != nil {
		return nil, errors.Join(ErrOpen, err)
	}

	r, err := NewReader(CodecFor(name), f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Join(ErrOpen, err)
	}

	return &readCloser{Reader: r, closers: []io.Closer{closerOf(r), f}}, nil
}

// Create creates or truncates name for writing, compressing as implied by its extension.
// Close flushes the compressor and then closes the file.
func Create(name string) (io.WriteCloser, error) {
	codec := CodecFor(name)
	if codec == Bzip2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedWrite, codec)
	}

	f, err := FsFactory().Create(name)
	if err != nil {
		return nil, errors.Join(ErrOpen, err)
	}

	w, err := NewWriter(codec, f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Join(ErrOpen, err)
	}

	return &writeCloser{Writer: w, file: f}, nil
}

// NewReader wraps r in the decompressor for codec.
func NewReader(codec Codec, r io.Reader) (io.Reader, error) {
	switch codec {
	case Gzip:
		return gzip.NewReader(r)
	case Bzip2:
		return bzip2.NewReader(r), nil
	case XZ:
		return xz.NewReader(r)
	case LZMA:
		return lzma.NewReader(r)
	case Zstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}

		return d.IOReadCloser(), nil
	default:
		return r, nil
	}
}

// NewWriter wraps w in the compressor for codec. None returns a writer whose Close is a no-op.
func NewWriter(codec Codec, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case Gzip:
		return gzip.NewWriter(w), nil
	case XZ:
		return xz.NewWriter(w)
	case LZMA:
		return lzma.NewWriter(w)
	case Zstd:
		return zstd.NewWriter(w)
	case Bzip2:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedWrite, codec)
	default:
		return nopWriteCloser{w}, nil
	}
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error

	for _, c := range r.closers {
		if c == nil {
			continue
		}

		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

type writeCloser struct {
	io.Writer
	file io.Closer
}

func (w *writeCloser) Close() error {
	var flushErr error
	if c, ok := w.Writer.(io.Closer); ok {
		flushErr = c.Close()
	}

	return errors.Join(flushErr, w.file.Close())
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// closerOf returns r as an io.Closer when it wraps a decompressor that holds resources.
// Plain files are closed separately and are skipped here.
func closerOf(r io.Reader) io.Closer {
	switch c := r.(type) {
	case afero.File:
		return nil
	case io.Closer:
		return c
	default:
		return nil
	}
}
