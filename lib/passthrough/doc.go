// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// Package passthrough implements the interposing FUSE filesystem that
// is layered over each planned mount point. Every operation is
// forwarded to the real directory underneath via a backing descriptor
// captured before the mount was placed, so the filesystem never
// traverses its own mount. Operations that would expose or mutate file
// content consult the rule engine first and fail with EACCES when a
// deny rule matches, emitting a denial event.
//
// Each inode holds its parent link and basename inside the go-fuse
// node bridge, plus a lazily opened O_PATH descriptor rooted at the
// backing handle. Descriptors are opened relative to the parent's
// descriptor, never by absolute path, so path resolution cannot
// recurse into the mount. Rule matching uses the lexical path of the
// inode under the mount point; symlinks are not resolved.
package passthrough
