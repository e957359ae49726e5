// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package mountplan

import (
	"fmt"
	"sort"
	"strings"
)

// Plan computes the minimal set of absolute directories that must be
// replaced by the pass-through filesystem to enforce deniedPaths (the
// literal paths and glob patterns referenced by a compiled rule set, as
// returned by AccessRules.DeniedPaths). The result is sorted
// lexicographically for deterministic mounting. An empty deniedPaths
// yields an empty plan.
//
// Plan returns an error if any rule pattern would require mounting "/".
func Plan(deniedPaths []string) ([]string, error) {
	candidateSet := make(map[string]bool)
	for _, p := range deniedPaths {
		dir := candidateDir(p)
		if dir == "/" {
			return nil, fmt.Errorf("rule pattern too broad: %s", p)
		}
		candidateSet[dir] = true
	}

	candidates := make([]string, 0, len(candidateSet))
	for dir := range candidateSet {
		candidates = append(candidates, dir)
	}

	collapsed := collapseAncestors(candidates)
	sort.Strings(collapsed)
	return collapsed, nil
}

// candidateDir finds the longest prefix of path segments containing no
// glob metacharacter and returns the directory that prefix denotes. For
// a literal path (no metacharacter anywhere), this is the path's parent
// directory, since the whole path is itself the "prefix" and the final
// segment is a file/directory name, not part of the containing
// directory. For a glob pattern, the first metacharacter-bearing segment
// marks the cut point, and everything before it is already a complete
// directory path.
func candidateDir(path string) string {
	segments := strings.Split(path, "/")

	cut := len(segments) - 1
	for i, seg := range segments {
		if strings.ContainsAny(seg, "*?[") {
			cut = i
			break
		}
	}

	dir := strings.Join(segments[:cut], "/")
	if dir == "" {
		return "/"
	}
	return dir
}

// collapseAncestors drops any candidate that has another candidate as a
// strict path-segment ancestor, keeping only the shallowest directory in
// each ancestor chain. Comparison is by path segment, not string prefix,
// so "/foo" does not collapse "/foobar".
func collapseAncestors(candidates []string) []string {
	sort.Slice(candidates, func(i, j int) bool {
		return depth(candidates[i]) < depth(candidates[j])
	})

	var kept []string
	for _, c := range candidates {
		covered := false
		for _, k := range kept {
			if isAncestor(k, c) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, c)
		}
	}
	return kept
}

func depth(path string) int {
	return len(strings.Split(strings.Trim(path, "/"), "/"))
}

// isAncestor reports whether ancestor equals descendant or its path
// segments are a strict prefix of descendant's path segments.
func isAncestor(ancestor, descendant string) bool {
	if ancestor == descendant {
		return true
	}
	aSegs := strings.Split(strings.Trim(ancestor, "/"), "/")
	dSegs := strings.Split(strings.Trim(descendant, "/"), "/")
	if len(aSegs) >= len(dSegs) {
		return false
	}
	for i, seg := range aSegs {
		if dSegs[i] != seg {
			return false
		}
	}
	return true
}
