// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// Package selftest verifies end to end that denial enforcement
// actually holds on this system. Each scenario builds a scratch
// working directory with its own .claude/settings.json and fixture
// files, runs the denywall binary against a probe command inside it,
// and checks that denied operations fail while allowed ones succeed.
// The battery is wired to the "denywall selftest" subcommand as a
// deployment health check.
package selftest
