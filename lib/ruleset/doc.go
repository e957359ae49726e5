// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// Package ruleset implements the deny-rule grammar and the compiled
// [AccessRules] lookup structure that the pass-through filesystem
// consults on every gated operation.
//
// A deny rule is written as "Operation(path)", where Operation is one of
// Read, Write, or Execute and path is either a literal filesystem path or
// a glob pattern (containing *, ?, or [). Relative paths (./... or ../...)
// are resolved against the working directory the tool was invoked from
// before being compiled; everything else is already absolute by the time
// it reaches [Parse].
package ruleset
