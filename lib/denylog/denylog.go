// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package denylog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/denywall/denywall/lib/ruleset"
)

// Event is one denied filesystem operation, as observed by the
// pass-through filesystem.
type Event struct {
	// Time is when the denial occurred.
	Time time.Time

	// PID is the process that issued the denied syscall. This is the
	// actual caller inside the command subtree, not the launched
	// command itself.
	PID uint32

	// Process is the caller's short process name (from
	// /proc/<pid>/comm), or a "pid:<n>" placeholder when the caller
	// exited before it could be resolved.
	Process string

	// Op is the operation class that was denied.
	Op ruleset.Operation

	// Path is the absolute path of the denied object, as seen inside
	// the mount namespace.
	Path string
}

// Options configures a denial logger.
type Options struct {
	// Quiet suppresses the stderr sink. File and structured sinks
	// are unaffected.
	Quiet bool

	// LogFilePath, when non-empty, appends one denial line per event
	// to the named file.
	LogFilePath string

	// Stderr overrides the standard-error sink. Defaults to
	// os.Stderr. Used by tests.
	Stderr io.Writer

	// Logger receives each event as a structured record at warn
	// level. If nil, structured emission is skipped.
	Logger *slog.Logger
}

// Logger records denial events. Safe for concurrent use from any
// filesystem worker.
type Logger struct {
	mu     sync.Mutex
	quiet  bool
	stderr io.Writer
	file   *os.File
	slog   *slog.Logger
}

// New creates a denial logger, opening the log file for appending if
// one is configured.
func New(options Options) (*Logger, error) {
	logger := &Logger{
		quiet:  options.Quiet,
		stderr: options.Stderr,
		slog:   options.Logger,
	}
	if logger.stderr == nil {
		logger.stderr = os.Stderr
	}
	if options.LogFilePath != "" {
		file, err := os.OpenFile(options.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening denial log file %s: %w", options.LogFilePath, err)
		}
		logger.file = file
	}
	return logger, nil
}

// Record emits one denial event to every configured sink.
func (l *Logger) Record(event Event) {
	line := FormatLine(event)

	l.mu.Lock()
	if !l.quiet {
		io.WriteString(l.stderr, line)
	}
	if l.file != nil {
		l.file.WriteString(line)
	}
	l.mu.Unlock()

	if l.slog != nil {
		l.slog.Warn("access denied",
			"op", strings.ToLower(event.Op.String()),
			"path", event.Path,
			"pid", event.PID,
			"proc", event.Process,
		)
	}
}

// Close flushes and closes the log file sink, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// FormatLine renders an event as a single denial log line, newline
// terminated. The timestamp is ISO-8601 UTC with second resolution.
func FormatLine(event Event) string {
	return fmt.Sprintf("[DENIED] %s pid=%d proc=%s op=%s path=%s\n",
		event.Time.UTC().Truncate(time.Second).Format(time.RFC3339),
		event.PID,
		event.Process,
		strings.ToLower(event.Op.String()),
		event.Path,
	)
}
