// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package isolate

import (
	"os/exec"
	"testing"
)

func TestExitStatusNil(t *testing.T) {
	if got := exitStatus(nil); got != 0 {
		t.Errorf("exitStatus(nil) = %d, want 0", got)
	}
}

func TestExitStatusCodePassthrough(t *testing.T) {
	err := exec.Command("sh", "-c", "exit 3").Run()
	if err == nil {
		t.Fatal("expected the command to fail")
	}
	if got := exitStatus(err); got != 3 {
		t.Errorf("exitStatus = %d, want 3", got)
	}
}

func TestExitStatusSignalDeath(t *testing.T) {
	err := exec.Command("sh", "-c", "kill -TERM $$").Run()
	if err == nil {
		t.Fatal("expected the command to die")
	}
	// SIGTERM is 15; signal death maps to 128+signo.
	if got := exitStatus(err); got != 143 {
		t.Errorf("exitStatus = %d, want 143", got)
	}
}

func TestExitStatusNonExitError(t *testing.T) {
	err := exec.Command("/nonexistent-binary-for-test").Run()
	if err == nil {
		t.Fatal("expected a start failure")
	}
	if got := exitStatus(err); got != 1 {
		t.Errorf("exitStatus = %d, want 1", got)
	}
}

func TestIsExitError(t *testing.T) {
	if code, ok := IsExitError(&ExitError{Code: 42}); !ok || code != 42 {
		t.Errorf("IsExitError = (%d, %v), want (42, true)", code, ok)
	}
	if _, ok := IsExitError(exec.ErrNotFound); ok {
		t.Error("IsExitError matched an unrelated error")
	}
}

func TestDetectCapabilities(t *testing.T) {
	caps := DetectCapabilities()
	if caps == nil {
		t.Fatal("DetectCapabilities returned nil")
	}
	reason := caps.SkipReason()
	if caps.UserNamespacesEnabled && caps.FuseAvailable && reason != "" {
		t.Errorf("capable system reported skip reason %q", reason)
	}
	if !caps.UserNamespacesEnabled && reason == "" {
		t.Error("incapable system reported no skip reason")
	}
}
