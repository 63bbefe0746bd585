// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/scratch/internal/copytree"
	"github.com/matt-FFFFFF/scratch/internal/ctxlog"
	"github.com/spf13/afero"
)

// LinkName is the name of the symlink published in the original directory.
const LinkName = "scratch_link"

const (
	tempDirPrefix  = "scratch_"
	stageDirPrefix = "scratch_stage_"
)

var (
	// ErrEnter is returned when the workspace cannot be set up.
	ErrEnter = errors.New("failed to enter scratch workspace")
	// ErrExit is returned when the workspace cannot be torn down cleanly.
	ErrExit = errors.New("failed to exit scratch workspace")
	// ErrCopyOut is returned when results cannot be copied back to the original directory.
	// The scratch directory is kept in that case and its path is part of the error.
	ErrCopyOut = errors.New("failed to copy workspace results back")
	// ErrNoSymlinkSupport is returned when WithSymbolicLink is used on a filesystem without links.
	ErrNoSymlinkSupport = errors.New("filesystem does not support symbolic links")
)

// FS is the filesystem used for everything except changing directory.
var FS = afero.NewOsFs()

// Getwd and Chdir are package variables so tests can stub them.
var (
	Getwd = os.Getwd
	Chdir = os.Chdir
)

// Option configures a Workspace.
type Option func(w *Workspace)

// WithSymbolicLink publishes LinkName in the original directory, pointing at the scratch directory.
func WithSymbolicLink() Option {
	return func(w *Workspace) {
		w.createLink = true
	}
}

// WithCopyIn copies the original directory into the scratch directory on Enter.
func WithCopyIn() Option {
	return func(w *Workspace) {
		w.copyIn = true
	}
}

// WithCopyOut replaces the contents of the original directory with the scratch directory on Exit.
func WithCopyOut() Option {
	return func(w *Workspace) {
		w.copyOut = true
	}
}

// Workspace is a scratch directory bound to the lifetime of an Enter/Exit pair.
type Workspace struct {
	root        string
	originalDir string
	createLink  bool
	copyIn      bool
	copyOut     bool
	tempDir     string
}

// New records the current working directory and the scratch root.
// An empty root selects pass-through mode. New does not touch the filesystem.
func New(root string, opts ...Option) (*Workspace, error) {
	cwd, err := Getwd()
	if err != nil {
		return nil, errors.Join(ErrEnter, err)
	}

	if root != "" {
		root, err = filepath.Abs(root)
		if err != nil {
			return nil, errors.Join(ErrEnter, err)
		}
	}

	w := &Workspace{
		root:        root,
		originalDir: cwd,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Dir returns the active scratch directory, or "" when none was created.
func (w *Workspace) Dir() string {
	return w.tempDir
}

// OriginalDir returns the working directory recorded by New.
func (w *Workspace) OriginalDir() string {
	return w.originalDir
}

// Root returns the absolute scratch root, or "" in pass-through mode.
func (w *Workspace) Root() string {
	return w.root
}

// Active reports whether Enter created a scratch directory that Exit has not yet removed.
func (w *Workspace) Active() bool {
	return w.tempDir != ""
}

// Enter creates the scratch directory and makes it the working directory.
// It returns the directory the caller should work in: the scratch directory, or the
// original directory in pass-through mode. If a step fails after the scratch directory
// was created, Enter undoes its work before returning the error.
func (w *Workspace) Enter(ctx context.Context) (string, error) {
	logger := ctxlog.Logger(ctx).With("root", w.root)

	if w.tempDir != "" {
		return "", fmt.Errorf("%w: already entered at %s", ErrEnter, w.tempDir)
	}

	if !w.rootExists() {
		logger.Debug("workspace", "detail", "no scratch root, pass-through", "cwd", w.originalDir)
		return w.originalDir, nil
	}

	dir, err := afero.TempDir(FS, w.root, tempDirPrefix)
	if err != nil {
		return "", errors.Join(ErrEnter, err)
	}

	dir, err = filepath.Abs(dir)
	if err != nil {
		_ = FS.RemoveAll(dir)
		return "", errors.Join(ErrEnter, err)
	}

	w.tempDir = dir
	logger = logger.With("dir", dir)
	logger.Debug("workspace", "detail", "created scratch directory")

	if w.copyIn {
		if err := copytree.Copy(ctx, FS, w.originalDir, dir); err != nil {
			return "", w.abortEnter(ctx, false, err)
		}

		logger.Debug("workspace", "detail", "copied original directory in", "src", w.originalDir)
	}

	if w.createLink {
		if err := w.link(); err != nil {
			return "", w.abortEnter(ctx, false, err)
		}

		logger.Debug("workspace", "detail", "published link", "link", w.linkPath())
	}

	if err := Chdir(dir); err != nil {
		return "", w.abortEnter(ctx, w.createLink, err)
	}

	return dir, nil
}

// Exit tears the workspace down. It is a no-op in pass-through mode or when called twice.
// Cancellation of ctx does not interrupt it; ctx only carries the logger.
// The working directory is always restored and the link always removed. The scratch
// directory is removed unless the copy-out sequence failed, in which case it is kept
// and reported through ErrCopyOut so its contents are not lost.
func (w *Workspace) Exit(ctx context.Context) error {
	if w.tempDir == "" {
		return nil
	}

	// release runs to completion even when the block ended because ctx was cancelled
	ctx = context.WithoutCancel(ctx)

	logger := ctxlog.Logger(ctx).With("root", w.root).With("dir", w.tempDir)

	var result *multierror.Error

	keep := false

	if w.copyOut {
		if err := w.copyBack(ctx); err != nil {
			keep = true
			result = multierror.Append(result, fmt.Errorf("%w (results kept in %s): %w", ErrCopyOut, w.tempDir, err))
		} else {
			logger.Debug("workspace", "detail", "copied results back", "dst", w.originalDir)
		}
	}

	if err := Chdir(w.originalDir); err != nil {
		result = multierror.Append(result, err)
	}

	if !keep {
		if err := FS.RemoveAll(w.tempDir); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if w.createLink {
		if err := FS.Remove(w.linkPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}

	logger.Debug("workspace", "detail", "exited", "kept", keep)

	w.tempDir = ""

	if err := result.ErrorOrNil(); err != nil {
		return errors.Join(ErrExit, err)
	}

	return nil
}

// Do runs fn inside a workspace. The workspace is exited on every return path,
// including a panic in fn or cancellation of ctx; fn's error and Exit's error are both
// returned. If copying results back fails, the scratch directory is left in place and
// its path is named in the ErrCopyOut error.
func Do(ctx context.Context, root string, fn func(ctx context.Context, dir string) error, opts ...Option) (err error) {
	w, err := New(root, opts...)
	if err != nil {
		return err
	}

	dir, err := w.Enter(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if exitErr := w.Exit(ctx); exitErr != nil {
			err = errors.Join(err, exitErr)
		}
	}()

	return fn(ctx, dir)
}

// rootExists reports whether anything exists at the root. A root that is not a
// directory is not pass-through; creating the scratch directory in it fails instead.
func (w *Workspace) rootExists() bool {
	if w.root == "" {
		return false
	}

	ok, err := afero.Exists(FS, w.root)

	return err == nil && ok
}

func (w *Workspace) linkPath() string {
	return filepath.Join(w.originalDir, LinkName)
}

func (w *Workspace) link() error {
	linker, ok := FS.(afero.Linker)
	if !ok {
		return ErrNoSymlinkSupport
	}

	return linker.SymlinkIfPossible(w.tempDir, w.linkPath())
}

// abortEnter removes what Enter created so far and returns err wrapped in ErrEnter.
func (w *Workspace) abortEnter(ctx context.Context, removeLink bool, err error) error {
	ctxlog.Debug(ctx, "workspace", "detail", "enter failed, cleaning up", "dir", w.tempDir, "error", err)

	if removeLink {
		_ = FS.Remove(w.linkPath())
	}

	_ = FS.RemoveAll(w.tempDir)
	w.tempDir = ""

	return errors.Join(ErrEnter, err)
}

// copyBack stages the scratch directory inside the original directory, clears the
// original directory around the stage, and copies the stage into it.
func (w *Workspace) copyBack(ctx context.Context) error {
	stage, err := afero.TempDir(FS, w.originalDir, stageDirPrefix)
	if err != nil {
		return err
	}

	if err := copytree.Copy(ctx, FS, w.tempDir, stage); err != nil {
		_ = FS.RemoveAll(stage)
		return err
	}

	clearErr := w.clearOriginal(ctx, filepath.Base(stage))

	if err := copytree.Copy(ctx, FS, stage, w.originalDir); err != nil {
		return errors.Join(clearErr, err)
	}

	if err := FS.RemoveAll(stage); err != nil {
		return errors.Join(clearErr, err)
	}

	return clearErr
}

// clearOriginal removes every entry of the original directory except the stage and
// the published link. Entries that vanish while clearing are ignored; other failures
// are collected and returned once every entry has been tried.
func (w *Workspace) clearOriginal(ctx context.Context, stageName string) error {
	entries, err := afero.ReadDir(FS, w.originalDir)
	if err != nil {
		return err
	}

	var result *multierror.Error

	for _, e := range entries {
		name := e.Name()
		if name == stageName || (w.createLink && name == LinkName) {
			continue
		}

		p := filepath.Join(w.originalDir, name)

		if e.IsDir() {
			err = FS.RemoveAll(p)
		} else {
			err = FS.Remove(p)
		}

		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}

	if result != nil {
		ctxlog.Debug(ctx, "workspace", "detail", "clearing original directory left entries behind", "error", result)
	}

	return result.ErrorOrNil()
}
