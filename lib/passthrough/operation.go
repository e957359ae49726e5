// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package passthrough

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/denywall/denywall/lib/denylog"
	"github.com/denywall/denywall/lib/ruleset"
)

// fmodeExec is the FMODE_EXEC bit the kernel sets in the FUSE open
// flags for exec-style opens (execve, uselib). It is not part of the
// userspace O_* flag space.
const fmodeExec = 0x20

// operationForOpen classifies an open request. Anything that can
// mutate the file (write access mode, create, truncate, append) is a
// Write; an exec-style open is Execute; everything else is a Read.
func operationForOpen(flags uint32) ruleset.Operation {
	if flags&fmodeExec != 0 {
		return ruleset.Execute
	}
	if flags&unix.O_ACCMODE != unix.O_RDONLY {
		return ruleset.Write
	}
	if flags&(unix.O_CREAT|unix.O_TRUNC|unix.O_APPEND) != 0 {
		return ruleset.Write
	}
	return ruleset.Read
}

// operationsForAccessMask maps an access(2) mask to the operations it
// probes. F_OK (mask 0) maps to nothing: existence is not concealed.
func operationsForAccessMask(mask uint32) []ruleset.Operation {
	var ops []ruleset.Operation
	if mask&unix.R_OK != 0 {
		ops = append(ops, ruleset.Read)
	}
	if mask&unix.W_OK != 0 {
		ops = append(ops, ruleset.Write)
	}
	if mask&unix.X_OK != 0 {
		ops = append(ops, ruleset.Execute)
	}
	return ops
}

// callerInfo identifies the process behind a FUSE request.
type callerInfo struct {
	pid  uint32
	exe  string
	name string
}

// resolveCaller reads the requesting process's identity from /proc.
// The caller can exit between the syscall and this read; missing
// fields degrade to placeholders rather than failing the request.
func resolveCaller(ctx context.Context) callerInfo {
	fuseCaller, ok := fuse.FromContext(ctx)
	if !ok || fuseCaller == nil {
		return callerInfo{name: "unknown"}
	}

	info := callerInfo{pid: fuseCaller.Pid}
	if exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", fuseCaller.Pid)); err == nil {
		info.exe = exe
	}
	if comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", fuseCaller.Pid)); err == nil {
		info.name = strings.TrimSpace(string(comm))
	}
	if info.name == "" {
		info.name = fmt.Sprintf("pid:%d", fuseCaller.Pid)
	}
	return info
}

// gate consults the rule engine for op on path. On a match it records
// one denial event and returns EACCES; otherwise it returns 0. A
// caller whose executable is on the exclusion list bypasses the rules
// entirely.
func (t *treeState) gate(ctx context.Context, path string, op ruleset.Operation) syscall.Errno {
	if !t.rules.IsDenied(path, op) {
		return 0
	}

	who := resolveCaller(ctx)
	if who.exe != "" && t.rules.IsExecutableExcluded(who.exe) {
		return 0
	}

	t.denials.Record(denylog.Event{
		Time:    time.Now(),
		PID:     who.pid,
		Process: who.name,
		Op:      op,
		Path:    path,
	})
	return syscall.EACCES
}
