// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

// denywall runs commands with file-access deny rules enforced by a
// pass-through FUSE filesystem inside an unprivileged mount namespace.
//
// Usage:
//
//	denywall run [flags] -- <command> [args...]
//	denywall check [flags]
//	denywall selftest
//	denywall version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/denywall/denywall/lib/denylog"
	"github.com/denywall/denywall/lib/isolate"
	"github.com/denywall/denywall/lib/mountplan"
	"github.com/denywall/denywall/lib/ruleset"
	"github.com/denywall/denywall/lib/selftest"
	"github.com/denywall/denywall/lib/settings"
	"github.com/denywall/denywall/lib/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	// Hidden role markers come first: they are how the re-exec'd
	// process sides find their entry points.
	switch cmd {
	case isolate.RoleNamespace:
		os.Exit(namespaceMain(args))
	case isolate.RoleCommand:
		os.Exit(isolate.CommandMain(args))
	}

	var err error
	switch cmd {
	case "run":
		err = runCmd(args)
	case "check":
		err = checkCmd(args)
	case "selftest":
		err = selftestCmd(args)
	case "version", "--version", "-v":
		fmt.Printf("denywall %s\n", version.Info())
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		// A propagated command exit status passes through unchanged.
		if code, ok := isolate.IsExitError(err); ok {
			os.Exit(code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`denywall - Enforce file-access deny rules on a command

Deny rules are read from .claude/settings.json in the working
directory and enforced on the command and every process it spawns,
without requiring root.

USAGE
    denywall <command> [flags] [-- <args>...]

COMMANDS
    run       Run a command with deny rules enforced
    check     Validate the rule set and print the mount plan
    selftest  Verify that enforcement holds on this system
    version   Show version

EXAMPLES
    # Block reads of .env for an untrusted build step
    denywall run -- npm install

    # Suppress denial output on stderr, log to a file instead
    denywall run --quiet --log-file=/tmp/denials.log -- bash

    # Inspect what would be mounted, without running anything
    denywall check

CONFIGURATION
    .claude/settings.json:
        { "permissions": { "deny": ["Read(./.env)", "Write(./deploy/*)"] } }

    Rules are Read(path), Write(path), or Execute(path); paths start
    with ./ (relative to the working directory) or / and may use the
    glob metacharacters *, ?, and [...]. A missing settings file means
    no enforcement.
`)
}

// runFlags is the shared flag surface of run, check, and the hidden
// namespace role (which must be able to rebuild the exact same
// configuration from the same arguments).
type runFlags struct {
	quiet       bool
	logFile     string
	excludeExec []string
	command     []string
}

func parseRunFlags(name string, args []string) (*runFlags, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetInterspersed(false)
	quiet := fs.BoolP("quiet", "q", false, "suppress denial output on stderr")
	logFile := fs.String("log-file", "", "append denial events to this file")
	excludeExec := fs.StringArray("exclude-exec", nil, "executable path exempt from deny rules (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "denywall %s [flags] -- <command> [args...]\n\nFLAGS\n", name)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &runFlags{
		quiet:       *quiet,
		logFile:     *logFile,
		excludeExec: *excludeExec,
		command:     fs.Args(),
	}, nil
}

// buildEnforcement loads the settings for cwd and compiles them into
// the rule set and mount plan.
func buildEnforcement(cwd string, flags *runFlags) (*ruleset.AccessRules, []string, error) {
	loaded, err := settings.Load(cwd)
	if err != nil {
		return nil, nil, err
	}

	rules, err := ruleset.Build(loaded.Permissions.Deny, flags.excludeExec, cwd)
	if err != nil {
		return nil, nil, err
	}

	if len(loaded.Permissions.Deny) == 0 {
		return rules, nil, nil
	}
	plan, err := mountplan.Plan(rules.DeniedPaths())
	if err != nil {
		return nil, nil, err
	}
	return rules, plan, nil
}

func newLogger(quiet bool) *slog.Logger {
	level := slog.LevelWarn
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runCmd implements the "run" command: the supervisor role.
func runCmd(args []string) error {
	flags, err := parseRunFlags("run", args)
	if err != nil {
		return err
	}
	if len(flags.command) == 0 {
		return fmt.Errorf("command is required after --")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	rules, plan, err := buildEnforcement(cwd, flags)
	if err != nil {
		return err
	}

	return isolate.Run(isolate.Config{
		Rules:       rules,
		MountPoints: plan,
		Command:     flags.command,
		ForwardArgs: args,
		Logger:      newLogger(flags.quiet),
	})
}

// namespaceMain implements the hidden namespace role. It rebuilds
// the configuration from the forwarded run arguments; the working
// directory and settings file are unchanged across the re-exec.
func namespaceMain(args []string) int {
	flags, err := parseRunFlags("namespace", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "denywall: %v\n", err)
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "denywall: resolving working directory: %v\n", err)
		return 1
	}
	rules, plan, err := buildEnforcement(cwd, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "denywall: %v\n", err)
		return 1
	}

	logger := newLogger(flags.quiet)
	denials, err := denylog.New(denylog.Options{
		Quiet:       flags.quiet,
		LogFilePath: flags.logFile,
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "denywall: %v\n", err)
		return 1
	}
	defer denials.Close()

	return isolate.NamespaceMain(isolate.Config{
		Rules:       rules,
		MountPoints: plan,
		Command:     flags.command,
		Denials:     denials,
		Logger:      logger,
	})
}

// checkCmd implements the "check" command: load and compile the rule
// set, print the mount plan, touch no namespaces.
func checkCmd(args []string) error {
	flags, err := parseRunFlags("check", args)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	rules, plan, err := buildEnforcement(cwd, flags)
	if err != nil {
		return err
	}

	paths := rules.DeniedPaths()
	fmt.Printf("Settings: %s\n", settings.Path(cwd))
	fmt.Printf("Denied paths: %d\n", len(paths))
	if len(plan) == 0 {
		fmt.Println("Mount plan: empty (commands run without isolation)")
		return nil
	}
	fmt.Println("Mount plan:")
	for _, point := range plan {
		fmt.Printf("  %s\n", point)
	}
	return nil
}

// selftestCmd implements the "selftest" command.
func selftestCmd(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("selftest takes no arguments")
	}

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable: %w", err)
	}

	runner := selftest.NewRunner(binary)
	runner.RunAll(context.Background())
	runner.PrintResults(os.Stdout)

	if runner.HasFailures() {
		return fmt.Errorf("enforcement self-test failed")
	}
	return nil
}
