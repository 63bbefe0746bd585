// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package copytree copies the contents of one directory into another on an afero.Fs.
//
// Files keep their permission bits, directories are recreated, and symbolic links are
// recreated as links when the filesystem supports them. If the destination is inside
// the source, the walk does not descend into it.
package copytree
