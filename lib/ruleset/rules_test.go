// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package ruleset

import "testing"

func TestExactReadDenied(t *testing.T) {
	cwd := "/home/user/project"
	rules, err := Build([]string{"Read(./a.txt)"}, nil, cwd)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !rules.IsDenied("/home/user/project/a.txt", Read) {
		t.Error("expected a.txt read to be denied")
	}
	if rules.IsDenied("/home/user/project/b.txt", Read) {
		t.Error("expected b.txt read to be allowed")
	}
}

func TestWriteNotBlockedByReadRule(t *testing.T) {
	rules, err := Build([]string{"Read(./a.txt)"}, nil, "/home/user/project")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if rules.IsDenied("/home/user/project/a.txt", Write) {
		t.Error("a read-only rule must not block writes")
	}
}

func TestGlobPattern(t *testing.T) {
	rules, err := Build([]string{"Read(./*.env*)"}, nil, "/home/user/project")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cases := []struct {
		path   string
		denied bool
	}{
		{"/home/user/project/.env", true},
		{"/home/user/project/.env.local", true},
		{"/home/user/project/config.json", false},
	}
	for _, c := range cases {
		if got := rules.IsDenied(c.path, Read); got != c.denied {
			t.Errorf("IsDenied(%q) = %v, want %v", c.path, got, c.denied)
		}
	}
}

func TestWriteOperation(t *testing.T) {
	rules, err := Build([]string{"Write(./secret.key)"}, nil, "/home/user/project")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !rules.IsDenied("/home/user/project/secret.key", Write) {
		t.Error("expected secret.key write to be denied")
	}
	if rules.IsDenied("/home/user/project/secret.key", Read) {
		t.Error("a write rule must not block reads")
	}
}

func TestExecuteOperation(t *testing.T) {
	rules, err := Build([]string{"Execute(./dangerous.sh)"}, nil, "/home/user/project")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !rules.IsDenied("/home/user/project/dangerous.sh", Execute) {
		t.Error("expected dangerous.sh execute to be denied")
	}
}

func TestInvalidFormat(t *testing.T) {
	if _, err := Build([]string{"invalid"}, nil, "/tmp"); err == nil {
		t.Error("expected an error for a malformed rule")
	}
}

func TestUnknownOperation(t *testing.T) {
	if _, err := Build([]string{"Delete(./file.txt)"}, nil, "/tmp"); err == nil {
		t.Error("expected an error for an unknown operation")
	}
}

func TestMultipleRules(t *testing.T) {
	rules, err := Build(
		[]string{"Read(./a.txt)", "Read(./.env)", "Write(./config.json)"},
		nil,
		"/home/user/project",
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !rules.IsDenied("/home/user/project/a.txt", Read) {
		t.Error("expected a.txt read denied")
	}
	if !rules.IsDenied("/home/user/project/.env", Read) {
		t.Error("expected .env read denied")
	}
	if !rules.IsDenied("/home/user/project/config.json", Write) {
		t.Error("expected config.json write denied")
	}
	if rules.IsDenied("/home/user/project/config.json", Read) {
		t.Error("config.json read should be unaffected by the write rule")
	}
}

func TestAbsolutePath(t *testing.T) {
	rules, err := Build([]string{"Read(/etc/passwd)"}, nil, "/tmp")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !rules.IsDenied("/etc/passwd", Read) {
		t.Error("expected /etc/passwd read denied")
	}
}

func TestExecutableExclusion(t *testing.T) {
	rules, err := Build(nil, []string{"/bin/cat", "./myscript.sh"}, "/tmp")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !rules.IsExecutableExcluded("/bin/cat") {
		t.Error("expected /bin/cat excluded")
	}
	if !rules.IsExecutableExcluded("/tmp/myscript.sh") {
		t.Error("expected ./myscript.sh resolved against cwd and excluded")
	}
	if rules.IsExecutableExcluded("/bin/ls") {
		t.Error("expected /bin/ls not excluded")
	}
}

func TestEmptyRuleSetDeniesNothing(t *testing.T) {
	rules, err := Build(nil, nil, "/tmp")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if rules.IsDenied("/etc/passwd", Read) {
		t.Error("an empty rule set must deny nothing")
	}
}

func TestParseRejectsMissingCloseParen(t *testing.T) {
	if _, err := Parse("Read(./a.txt", "/tmp"); err == nil {
		t.Error("expected an error when the rule has no closing paren")
	}
}

func TestParseRejectsEmptyPath(t *testing.T) {
	if _, err := Parse("Read()", "/tmp"); err == nil {
		t.Error("expected an error for an empty path")
	}
}

func TestOperationString(t *testing.T) {
	cases := map[Operation]string{Read: "Read", Write: "Write", Execute: "Execute"}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("Operation(%d).String() = %q, want %q", op, got, want)
		}
	}
}
