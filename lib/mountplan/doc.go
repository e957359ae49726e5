// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// Package mountplan derives the minimal set of directories that must be
// replaced by the pass-through filesystem in order to enforce a given
// rule set.
//
// For each rule pattern, the longest prefix of path segments containing
// no glob metacharacter is found; the directory containing that prefix is
// a candidate mount point. Candidates are then reduced by ancestor
// collapse: if one candidate is an ancestor of another (by path segment,
// not by string prefix — "/foo" must not collapse "/foobar"), only the
// shallower one is kept, since mounting it already covers everything
// beneath it.
package mountplan
