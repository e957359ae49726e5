// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package isolate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/denywall/denywall/lib/denylog"
	"github.com/denywall/denywall/lib/passthrough"
	"github.com/denywall/denywall/lib/ruleset"
)

// Hidden argv[1] role markers for the two re-exec'd process roles.
// They are matched before user-facing subcommand dispatch and never
// collide with it.
const (
	// RoleNamespace marks the namespace side: the process launched
	// into fresh user and mount namespaces that runs the filesystem
	// daemon.
	RoleNamespace = "__denywall-namespace"

	// RoleCommand marks the command side: the process that waits for
	// the mounts and then execs the target command.
	RoleCommand = "__denywall-command"
)

// readyByte is written into the synchronization pipe once every
// planned mount is established.
const readyByte = 'r'

// ExitError carries the target command's exit status up through the
// supervisor so the tool can pass it through unchanged.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// IsExitError extracts a propagated command exit code from an error
// returned by Run.
func IsExitError(err error) (int, bool) {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, true
	}
	return 0, false
}

// Config describes one enforced run.
type Config struct {
	// Rules is the compiled deny rule set, shared read-only with
	// every mount.
	Rules *ruleset.AccessRules

	// MountPoints is the planned set of directories to interpose, in
	// mounting order.
	MountPoints []string

	// Command is the target command and its arguments.
	Command []string

	// ForwardArgs are the original command-line arguments after the
	// subcommand, re-passed verbatim to the namespace side so it can
	// rebuild the same configuration in its own process.
	ForwardArgs []string

	// Denials receives denial events from the filesystem workers.
	Denials *denylog.Logger

	// Logger receives diagnostic messages.
	Logger *slog.Logger
}

// Run is the supervisor entry point. With an empty mount plan it
// execs the command directly in place, with zero isolation overhead.
// Otherwise it launches the namespace side inside new user and mount
// namespaces, waits for it, and reports the command's exit status as
// an *ExitError.
func Run(cfg Config) error {
	if len(cfg.Command) == 0 {
		return fmt.Errorf("no command to execute")
	}
	if len(cfg.MountPoints) == 0 {
		return execDirect(cfg.Command)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable: %w", err)
	}

	// Ctrl-C belongs to the foreground command; the supervisor stays
	// alive to forward the resulting exit status.
	signal.Ignore(os.Interrupt)

	uid := os.Getuid()
	gid := os.Getgid()

	namespaceSide := exec.Command(self, append([]string{RoleNamespace}, cfg.ForwardArgs...)...)
	namespaceSide.Stdin = os.Stdin
	namespaceSide.Stdout = os.Stdout
	namespaceSide.Stderr = os.Stderr
	namespaceSide.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER | syscall.CLONE_NEWNS,
		// Identity mapping for the invoking user. The runtime writes
		// "deny" to setgroups before the gid map, as the kernel
		// requires for unprivileged mappings.
		UidMappings:                []syscall.SysProcIDMap{{ContainerID: uid, HostID: uid, Size: 1}},
		GidMappings:                []syscall.SysProcIDMap{{ContainerID: gid, HostID: gid, Size: 1}},
		GidMappingsEnableSetgroups: false,
	}

	err = namespaceSide.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitStatus(err)}
	}
	return fmt.Errorf("cannot create namespaces (is unprivileged user namespace creation enabled?): %w", err)
}

// execDirect replaces the current process with the target command.
// Used when there is nothing to enforce.
func execDirect(command []string) error {
	path, err := exec.LookPath(command[0])
	if err != nil {
		return fmt.Errorf("cannot execute %s: %w", command[0], err)
	}
	if err := unix.Exec(path, command, os.Environ()); err != nil {
		return fmt.Errorf("cannot execute %s: %w", path, err)
	}
	return nil
}

// NamespaceMain runs the namespace side. It is invoked from main
// after RoleNamespace dispatch, already inside the new user and mount
// namespaces, with the configuration rebuilt from the forwarded
// arguments. Returns the process exit code.
func NamespaceMain(cfg Config) int {
	signal.Ignore(os.Interrupt)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}

	// Keep every mount local to this namespace: nothing placed here
	// may propagate back to the host mount tree.
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		fmt.Fprintf(os.Stderr, "denywall: failed to make mount propagation private: %v\n", err)
		return 1
	}

	// Capture a backing handle for every planned mount point before
	// anything is mounted over it. These descriptors are the only
	// path to the real contents afterwards.
	type mountSpec struct {
		point   string
		backing *os.File
	}
	specs := make([]mountSpec, 0, len(cfg.MountPoints))
	for _, point := range cfg.MountPoints {
		backing, err := passthrough.OpenBacking(point)
		if err != nil {
			fmt.Fprintf(os.Stderr, "denywall: %v\n", err)
			return 1
		}
		specs = append(specs, mountSpec{point: point, backing: backing})
	}

	pipeRead, pipeWrite, err := os.Pipe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "denywall: failed to create sync pipe: %v\n", err)
		return 1
	}

	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "denywall: resolving own executable: %v\n", err)
		return 1
	}

	// Start the command side now, before any FUSE server (and its
	// worker goroutines) exists. It blocks reading the pipe until
	// every mount is up.
	commandSide := exec.Command(self, append([]string{RoleCommand}, cfg.Command...)...)
	commandSide.Stdin = os.Stdin
	commandSide.Stdout = os.Stdout
	commandSide.Stderr = os.Stderr
	commandSide.ExtraFiles = []*os.File{pipeRead} // fd 3 in the child
	if err := commandSide.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "denywall: failed to start command process: %v\n", err)
		return 1
	}
	pipeRead.Close()

	var mounted []*fuse.Server
	defer func() {
		// A daemon crash must not leave stale FUSE mounts pinned on
		// the host.
		for _, server := range mounted {
			server.Unmount()
		}
	}()

	for _, spec := range specs {
		server, err := passthrough.Mount(passthrough.Options{
			Mountpoint: spec.point,
			Backing:    spec.backing,
			Rules:      cfg.Rules,
			Denials:    cfg.Denials,
			Logger:     logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "denywall: %v\n", err)
			// Partial enforcement is never exposed: the command side
			// is still blocked on the pipe and is torn down without
			// exec'ing. Closing the pipe unblocks its read with EOF.
			pipeWrite.Close()
			commandSide.Process.Kill()
			commandSide.Wait()
			return 1
		}
		mounted = append(mounted, server)
	}

	// Every planned mount is established; release the command side.
	if _, err := pipeWrite.Write([]byte{readyByte}); err != nil {
		fmt.Fprintf(os.Stderr, "denywall: failed to signal readiness: %v\n", err)
		commandSide.Process.Kill()
		commandSide.Wait()
		return 1
	}
	pipeWrite.Close()

	code := exitStatus(commandSide.Wait())

	for _, server := range mounted {
		if err := server.Unmount(); err != nil {
			// Shutdown-time unmount failure does not change the exit
			// code.
			logger.Warn("unmount failed", "error", err)
			continue
		}
		server.Wait()
	}
	mounted = nil
	return code
}

// CommandMain runs the command side: block until the mounts are
// ready, force a fresh working-directory resolution, then exec the
// target. Returns the process exit code for failure paths; on success
// it does not return.
func CommandMain(command []string) int {
	if len(command) == 0 {
		fmt.Fprintln(os.Stderr, "denywall: no command to execute")
		return 1
	}

	pipe := os.NewFile(3, "mount-ready-pipe")
	if pipe == nil {
		fmt.Fprintln(os.Stderr, "denywall: sync pipe not inherited")
		return 1
	}
	var buf [1]byte
	count, err := pipe.Read(buf[:])
	pipe.Close()
	if err != nil || count == 0 || buf[0] != readyByte {
		// EOF without the ready byte means the namespace side failed
		// before establishing enforcement.
		fmt.Fprintln(os.Stderr, "denywall: isolation setup failed; command not executed")
		return 1
	}

	// The kernel may still serve a pre-mount resolution of the
	// working directory. Leaving and re-entering it forces relative
	// paths through the new mounts.
	if cwd, err := os.Getwd(); err == nil {
		if err := os.Chdir("/"); err == nil {
			if err := os.Chdir(cwd); err != nil {
				fmt.Fprintf(os.Stderr, "denywall: cannot re-enter %s: %v\n", cwd, err)
				return 1
			}
		}
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "denywall: %s: command not found\n", command[0])
		return 127
	}
	if err := unix.Exec(path, command, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "denywall: cannot execute %s: %v\n", path, err)
	}
	return 126
}

// exitStatus derives the conventional shell exit code from a Wait
// error: the child's own code when it exited, 128+signo when a signal
// killed it, 1 when the wait itself failed.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
