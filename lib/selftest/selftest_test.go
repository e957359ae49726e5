// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package selftest

import (
	"bytes"
	"strings"
	"testing"
)

func TestScenarioNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, scenario := range Scenarios {
		if scenario.Name == "" {
			t.Error("scenario with empty name")
		}
		if seen[scenario.Name] {
			t.Errorf("duplicate scenario name %q", scenario.Name)
		}
		seen[scenario.Name] = true
		if scenario.Check == nil {
			t.Errorf("scenario %q has no check", scenario.Name)
		}
	}
}

func TestPrintResults(t *testing.T) {
	runner := NewRunner("/nonexistent")
	runner.results = []Result{
		{Scenario: &Scenarios[0], Passed: true},
		{Scenario: &Scenarios[1], Passed: false, Detail: "content leaked"},
		{Scenario: &Scenarios[2], Skipped: true, Detail: "no user namespaces"},
	}

	var out bytes.Buffer
	runner.PrintResults(&out)
	text := out.String()

	for _, want := range []string{"[PASS]", "[FAIL]", "[SKIP]", "content leaked", "1 passed, 1 failed, 1 skipped"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	if !runner.HasFailures() {
		t.Error("HasFailures() = false with a failed result")
	}
}

func TestSkipsAreNotFailures(t *testing.T) {
	runner := NewRunner("/nonexistent")
	runner.results = []Result{
		{Scenario: &Scenarios[0], Skipped: true, Detail: "no user namespaces"},
	}
	if runner.HasFailures() {
		t.Error("a skipped scenario counted as a failure")
	}
}
