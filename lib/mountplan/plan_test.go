// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package mountplan

import (
	"reflect"
	"testing"
)

func TestPlanLiteralPath(t *testing.T) {
	got, err := Plan([]string{"/home/user/project/a.txt"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"/home/user/project"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}

func TestPlanGlobWithinDirectory(t *testing.T) {
	got, err := Plan([]string{"/home/user/project/*.env*"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"/home/user/project"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}

func TestPlanGlobSpanningDirectories(t *testing.T) {
	got, err := Plan([]string{"/home/user/*/secret.key"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"/home/user"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}

func TestPlanRejectsRoot(t *testing.T) {
	if _, err := Plan([]string{"/*.env"}); err == nil {
		t.Error("expected an error for a rule requiring mounting /")
	}
}

func TestPlanRejectsRootLevelLiteral(t *testing.T) {
	if _, err := Plan([]string{"/a.txt"}); err == nil {
		t.Error("expected an error for a root-level literal path")
	}
}

func TestPlanAncestorCollapse(t *testing.T) {
	got, err := Plan([]string{
		"/home/user/project/a.txt",
		"/home/user/project/sub/b.txt",
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"/home/user/project"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}

func TestPlanDoesNotCollapseSiblingWithSamePrefix(t *testing.T) {
	got, err := Plan([]string{
		"/foo/a.txt",
		"/foobar/b.txt",
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"/foo", "/foobar"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}

func TestPlanEmptyRuleSet(t *testing.T) {
	got, err := Plan(nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected an empty plan, got %v", got)
	}
}

func TestPlanDeterministicOrder(t *testing.T) {
	got, err := Plan([]string{
		"/zebra/a.txt",
		"/alpha/b.txt",
		"/middle/c.txt",
	})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"/alpha", "/middle", "/zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}
