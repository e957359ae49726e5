// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/denywall/denywall/lib/ruleset"
)

func writeSettings(t *testing.T, dir string, content string) {
	t.Helper()
	claudeDir := filepath.Join(dir, ".claude")
	if err := os.MkdirAll(claudeDir, 0o755); err != nil {
		t.Fatalf("creating .claude dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(claudeDir, "settings.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
}

func TestParseRunFlags(t *testing.T) {
	flags, err := parseRunFlags("run", []string{
		"--quiet",
		"--log-file", "/tmp/denials.log",
		"--exclude-exec", "/bin/cat",
		"--exclude-exec", "/usr/bin/git",
		"--",
		"bash", "-c", "echo hello",
	})
	if err != nil {
		t.Fatalf("parseRunFlags failed: %v", err)
	}
	if !flags.quiet {
		t.Error("quiet not set")
	}
	if flags.logFile != "/tmp/denials.log" {
		t.Errorf("logFile = %q", flags.logFile)
	}
	if len(flags.excludeExec) != 2 || flags.excludeExec[1] != "/usr/bin/git" {
		t.Errorf("excludeExec = %v", flags.excludeExec)
	}
	if len(flags.command) != 3 || flags.command[0] != "bash" {
		t.Errorf("command = %v", flags.command)
	}
}

func TestParseRunFlagsWithoutSeparator(t *testing.T) {
	flags, err := parseRunFlags("run", []string{"ls", "-la"})
	if err != nil {
		t.Fatalf("parseRunFlags failed: %v", err)
	}
	if len(flags.command) != 2 || flags.command[0] != "ls" || flags.command[1] != "-la" {
		t.Errorf("command = %v", flags.command)
	}
}

func TestBuildEnforcement(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, `{"permissions":{"deny":["Read(./.env)","Write(./deploy/secret.key)"]}}`)

	rules, plan, err := buildEnforcement(dir, &runFlags{})
	if err != nil {
		t.Fatalf("buildEnforcement failed: %v", err)
	}
	if !rules.IsDenied(filepath.Join(dir, ".env"), ruleset.Read) {
		t.Error("compiled rules do not deny the configured path")
	}
	// The working directory is an ancestor of deploy/, so the plan
	// collapses to the single shallower mount point.
	if len(plan) != 1 || plan[0] != dir {
		t.Errorf("plan = %v, want [%s]", plan, dir)
	}
}

func TestBuildEnforcementMissingSettings(t *testing.T) {
	_, plan, err := buildEnforcement(t.TempDir(), &runFlags{})
	if err != nil {
		t.Fatalf("missing settings must not error: %v", err)
	}
	if len(plan) != 0 {
		t.Errorf("expected empty plan, got %v", plan)
	}
}

func TestBuildEnforcementBadRule(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, `{"permissions":{"deny":["Chmod(./x)"]}}`)

	_, _, err := buildEnforcement(dir, &runFlags{})
	if err == nil {
		t.Fatal("expected an error for an unknown operation")
	}
	if !strings.Contains(err.Error(), "Chmod") {
		t.Errorf("error does not cite the offending rule: %v", err)
	}
}

func TestBuildEnforcementMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "{")

	if _, _, err := buildEnforcement(dir, &runFlags{}); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestBuildEnforcementTooBroadRule(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, `{"permissions":{"deny":["Read(/*.conf)"]}}`)

	_, _, err := buildEnforcement(dir, &runFlags{})
	if err == nil {
		t.Fatal("expected an error for a rule requiring a root mount")
	}
	if !strings.Contains(err.Error(), "too broad") {
		t.Errorf("unexpected error: %v", err)
	}
}
