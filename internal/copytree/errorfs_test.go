// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package copytree

import (
	"os"

	"github.com/spf13/afero"
)

// errorFS fails every operation that touches errorPath with os.ErrPermission.
type errorFS struct {
	afero.Fs
	errorPath string
}

func (e *errorFS) Open(name string) (afero.File, error) {
	if name == e.errorPath {
		return nil, os.ErrPermission
	}

	return e.Fs.Open(name)
}

func (e *errorFS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == e.errorPath {
		return nil, os.ErrPermission
	}

	return e.Fs.OpenFile(name, flag, perm)
}

func (e *errorFS) MkdirAll(path string, perm os.FileMode) error {
	if path == e.errorPath {
		return os.ErrPermission
	}

	return e.Fs.MkdirAll(path, perm)
}
