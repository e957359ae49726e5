// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package passthrough

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/denywall/denywall/lib/ruleset"
)

func TestOperationForOpen(t *testing.T) {
	cases := []struct {
		name  string
		flags uint32
		want  ruleset.Operation
	}{
		{"read-only", unix.O_RDONLY, ruleset.Read},
		{"write-only", unix.O_WRONLY, ruleset.Write},
		{"read-write", unix.O_RDWR, ruleset.Write},
		{"truncate", unix.O_RDONLY | unix.O_TRUNC, ruleset.Write},
		{"append", unix.O_WRONLY | unix.O_APPEND, ruleset.Write},
		{"create", unix.O_RDONLY | unix.O_CREAT, ruleset.Write},
		{"exec", unix.O_RDONLY | fmodeExec, ruleset.Execute},
		{"nonblock-read", unix.O_RDONLY | unix.O_NONBLOCK, ruleset.Read},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := operationForOpen(tc.flags); got != tc.want {
				t.Errorf("operationForOpen(%#x) = %v, want %v", tc.flags, got, tc.want)
			}
		})
	}
}

func TestOperationsForAccessMask(t *testing.T) {
	if ops := operationsForAccessMask(0); len(ops) != 0 {
		t.Errorf("F_OK probe mapped to operations: %v", ops)
	}

	ops := operationsForAccessMask(unix.R_OK | unix.W_OK | unix.X_OK)
	if len(ops) != 3 {
		t.Fatalf("expected 3 operations, got %v", ops)
	}
	want := []ruleset.Operation{ruleset.Read, ruleset.Write, ruleset.Execute}
	for i, op := range want {
		if ops[i] != op {
			t.Errorf("ops[%d] = %v, want %v", i, ops[i], op)
		}
	}

	if ops := operationsForAccessMask(unix.X_OK); len(ops) != 1 || ops[0] != ruleset.Execute {
		t.Errorf("X_OK mapped to %v", ops)
	}
}
