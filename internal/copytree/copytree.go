// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package copytree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/spf13/afero"
)

var (
	// ErrFileCopy is returned when a file or link cannot be copied.
	ErrFileCopy = errors.New("file copy error")
	// ErrFilePath is returned when a source or destination path is unusable.
	ErrFilePath = errors.New("file path error")
	// ErrNotDirectory is returned when the copy source is not a directory.
	ErrNotDirectory = errors.New("copy source is not a directory")
)

// ownerRWX is added to copied directories so their contents can be written and removed later.
const ownerRWX = 0o700

// Copy copies every entry below src into dst, creating dst if needed.
// Existing files in dst with the same name are overwritten.
// The walk stops with ctx.Err() when ctx is cancelled.
func Copy(ctx context.Context, fsys afero.Fs, src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	if src == dst {
		return fmt.Errorf("%w: source and destination are both %s", ErrFilePath, src)
	}

	info, err := fsys.Stat(src)
	if err != nil {
		return errors.Join(ErrFilePath, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, src)
	}

	if err := fsys.MkdirAll(dst, info.Mode().Perm()|ownerRWX); err != nil {
		return errors.Join(ErrFilePath, err)
	}

	src, dst = resolveRoots(fsys, src, dst)
	skipDst := within(src, dst)
	entries := 0

	ctxlog.Debug(ctx, "copytree", "detail", "copying directory", "src", src, "dst", dst)

	err = afero.Walk(fsys, src, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		if path == src {
			return nil
		}

		if skipDst && path == dst {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Join(ErrFilePath, err)
		}

		target := filepath.Join(dst, rel)
		entries++

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			return copySymlink(ctx, fsys, path, target)
		case info.IsDir():
			if err := fsys.MkdirAll(target, info.Mode().Perm()|ownerRWX); err != nil {
				return errors.Join(ErrFilePath, err)
			}

			return nil
		default:
			return copyFile(fsys, path, target, info.Mode().Perm())
		}
	})
	if err != nil {
		return err
	}

	ctxlog.Debug(ctx, "copytree", "detail", "copy complete", "src", src, "dst", dst, "entries", entries)

	return nil
}

func copyFile(fsys afero.Fs, src, dst string, perm fs.FileMode) error {
	in, err := fsys.Open(src)
	if err != nil {
		return errors.Join(ErrFileCopy, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := fsys.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Join(ErrFileCopy, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Join(ErrFileCopy, err)
	}

	if err := out.Close(); err != nil {
		return errors.Join(ErrFileCopy, err)
	}

	if err := fsys.Chmod(dst, perm); err != nil {
		return errors.Join(ErrFileCopy, err)
	}

	return nil
}

// copySymlink recreates the link at dst. Filesystems without link support get a
// copy of whatever the link points to.
func copySymlink(ctx context.Context, fsys afero.Fs, src, dst string) error {
	reader, canRead := fsys.(afero.LinkReader)
	linker, canLink := fsys.(afero.Linker)

	if !canRead || !canLink {
		info, err := fsys.Stat(src)
		if err != nil {
			return errors.Join(ErrFileCopy, err)
		}

		if info.IsDir() {
			return Copy(ctx, fsys, src, dst)
		}

		return copyFile(fsys, src, dst, info.Mode().Perm())
	}

	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return errors.Join(ErrFileCopy, err)
	}

	if err := fsys.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(ErrFileCopy, err)
	}

	if err := linker.SymlinkIfPossible(target, dst); err != nil {
		return errors.Join(ErrFileCopy, err)
	}

	return nil
}

// resolveRoots follows symlinks in both roots on the OS filesystem. The walk does
// not descend into a root that is itself a link.
func resolveRoots(fsys afero.Fs, src, dst string) (string, string) {
	if _, ok := fsys.(*afero.OsFs); !ok {
		return src, dst
	}

	if r, err := filepath.EvalSymlinks(src); err == nil {
		src = r
	}

	if r, err := filepath.EvalSymlinks(dst); err == nil {
		dst = r
	}

	return src, dst
}

// within reports whether child is strictly below parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." || rel == ".." {
		return false
	}

	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
