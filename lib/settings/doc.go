// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings loads the .claude/settings.json configuration file
// from the invoking working directory. The file carries the deny rule
// strings under permissions.deny; everything else in it is ignored.
package settings
