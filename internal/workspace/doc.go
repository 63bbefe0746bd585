// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package workspace provides a scoped scratch directory.
//
// Enter creates a uniquely named directory below a root, optionally copies the current
// directory into it, optionally publishes a "scratch_link" symlink to it, and changes
// the process working directory to it. Exit optionally copies the results back over the
// original directory, restores the working directory and removes everything Enter
// created. When the root is empty or does not exist both calls do nothing, so callers
// can treat the scratch directory as optional.
//
// The process working directory is global state. Only one workspace should be active
// per process at a time; nested workspaces must exit in reverse order of entry. Two
// workspaces created with WithSymbolicLink in the same directory collide on the link
// name.
package workspace
