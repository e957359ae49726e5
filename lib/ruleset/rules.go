// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package ruleset

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Operation identifies the kind of filesystem access a deny rule covers.
type Operation int

const (
	// Read covers open-for-read and read-access probes. Lookup, stat,
	// and readdir are not gated by it.
	Read Operation = iota
	// Write covers open-for-write, create, truncate, and metadata mutation.
	Write
	// Execute covers execute-bit access checks and exec of a path.
	Execute
)

// String renders the operation the way it appears in the rule grammar.
func (op Operation) String() string {
	switch op {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case Execute:
		return "Execute"
	default:
		return "Unknown"
	}
}

func parseOperation(s string) (Operation, error) {
	switch s {
	case "Read":
		return Read, nil
	case "Write":
		return Write, nil
	case "Execute":
		return Execute, nil
	default:
		return 0, fmt.Errorf("unknown operation: %s", s)
	}
}

// PathPattern is either a literal path or a glob pattern, matched with
// [path/filepath.Match] semantics: "*" never crosses a "/" boundary and
// there is no special rule for leading dots.
type PathPattern struct {
	literal string // set when !glob
	glob    string // set when glob
	isGlob  bool
}

func newPathPattern(resolved string) PathPattern {
	if strings.ContainsAny(resolved, "*?[") {
		return PathPattern{glob: resolved, isGlob: true}
	}
	return PathPattern{literal: resolved}
}

// Matches reports whether path satisfies the pattern.
func (p PathPattern) Matches(path string) bool {
	if !p.isGlob {
		return path == p.literal
	}
	ok, err := filepath.Match(p.glob, path)
	if err != nil {
		// Parse does not validate glob syntax, so a malformed glob can
		// reach here; it is treated as no match.
		return false
	}
	return ok
}

// String returns the pattern's underlying path or glob text.
func (p PathPattern) String() string {
	if p.isGlob {
		return p.glob
	}
	return p.literal
}

// DenyRule pairs an operation with the path pattern it blocks.
type DenyRule struct {
	Operation Operation
	Pattern   PathPattern
}

// Parse compiles one "Operation(path)" rule entry, resolving a relative
// path (./... or ../...) against cwd. The closing parenthesis must be the
// rule's last character; it does not need to be unescaped elsewhere in
// the path, since "(" and ")" are otherwise ordinary path characters.
func Parse(entry string, cwd string) (DenyRule, error) {
	open := strings.IndexByte(entry, '(')
	if open < 0 || !strings.HasSuffix(entry, ")") {
		return DenyRule{}, fmt.Errorf("invalid deny rule format: %s", entry)
	}
	close := len(entry) - 1
	if close <= open+1 {
		return DenyRule{}, fmt.Errorf("invalid deny rule format: %s", entry)
	}

	opStr := entry[:open]
	pathStr := entry[open+1 : close]

	op, err := parseOperation(opStr)
	if err != nil {
		return DenyRule{}, fmt.Errorf("invalid deny rule %q: %w", entry, err)
	}

	resolved := resolvePath(pathStr, cwd)
	return DenyRule{Operation: op, Pattern: newPathPattern(resolved)}, nil
}

// resolvePath joins a "./" or "../" prefixed path against cwd, stripping
// the leading "./" first so the result doesn't contain a redundant "/./"
// segment. Anything else (including absolute paths) passes through
// unchanged.
func resolvePath(pathStr, cwd string) string {
	switch {
	case strings.HasPrefix(pathStr, "./"):
		return filepath.Join(cwd, strings.TrimPrefix(pathStr, "./"))
	case strings.HasPrefix(pathStr, "../"):
		return filepath.Join(cwd, pathStr)
	default:
		return pathStr
	}
}
