// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// Package isolate builds the private mount namespace and supervises
// the three process roles involved in an enforced run:
//
//   - The supervisor (the process the user invoked) launches the
//     namespace side inside new user and mount namespaces and forwards
//     its exit status.
//   - The namespace side makes mount propagation private, captures
//     backing descriptors, starts the command side, layers the
//     pass-through filesystem over each planned mount point, signals
//     readiness over a pipe, waits for the command, and unmounts.
//   - The command side blocks on the readiness pipe, forces a fresh
//     resolution of its working directory, and execs the target
//     command.
//
// The Go runtime cannot fork and keep running in the child, so both
// process splits re-execute the running binary with a hidden role
// argument (RoleNamespace, RoleCommand), the same technique container
// runtimes use. The command side is started before any FUSE server
// exists, preserving the fork-before-threads ordering the mount
// handshake depends on. No privileges are required: the user
// namespace maps the invoking user to itself.
package isolate
