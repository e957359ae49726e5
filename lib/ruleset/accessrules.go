// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package ruleset

// AccessRules is the compiled, query-ready form of a deny list: a set of
// [DenyRule] entries indexed by [Operation] for fast lookup, plus a
// separate list of caller-executable patterns that are exempt from all
// deny rules regardless of operation.
type AccessRules struct {
	byOp     map[Operation][]PathPattern
	excluded []PathPattern
}

// Build compiles deny rule strings and excluded-executable entries into
// an [AccessRules], resolving relative paths in both against cwd. An empty denyRules slice produces a permissive
// AccessRules that denies nothing, matching the "missing settings file"
// contract.
func Build(denyRules []string, excludedExecs []string, cwd string) (*AccessRules, error) {
	rules := &AccessRules{byOp: make(map[Operation][]PathPattern)}

	for _, entry := range denyRules {
		rule, err := Parse(entry, cwd)
		if err != nil {
			return nil, err
		}
		rules.byOp[rule.Operation] = append(rules.byOp[rule.Operation], rule.Pattern)
	}

	for _, exec := range excludedExecs {
		resolved := resolvePath(exec, cwd)
		rules.excluded = append(rules.excluded, newPathPattern(resolved))
	}

	return rules, nil
}

// IsDenied reports whether op against path is blocked by any compiled
// rule for that operation.
func (r *AccessRules) IsDenied(path string, op Operation) bool {
	for _, pattern := range r.byOp[op] {
		if pattern.Matches(path) {
			return true
		}
	}
	return false
}

// IsExecutableExcluded reports whether exePath (the resolved target of
// /proc/<pid>/exe for the calling process) matches one of the excluded
// executable patterns. A match exempts that caller from every deny rule,
// for every operation, on this request.
func (r *AccessRules) IsExecutableExcluded(exePath string) bool {
	for _, pattern := range r.excluded {
		if pattern.Matches(exePath) {
			return true
		}
	}
	return false
}

// DeniedPaths returns the unique set of path/pattern strings referenced
// by compiled deny rules, in no particular order. Used by the
// mount-point planner and by the "check" subcommand's diagnostic output.
func (r *AccessRules) DeniedPaths() []string {
	seen := make(map[string]bool)
	var paths []string
	for _, patterns := range r.byOp {
		for _, p := range patterns {
			s := p.String()
			if !seen[s] {
				seen[s] = true
				paths = append(paths, s)
			}
		}
	}
	return paths
}
