// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// Package denylog records denial events emitted by the pass-through
// filesystem. Each event fans out to up to three sinks: a human-readable
// "[DENIED] ..." line on standard error (unless quiet), the same line
// appended to an optional log file, and a structured slog record.
package denylog
