// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package passthrough

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/denywall/denywall/lib/denylog"
	"github.com/denywall/denywall/lib/ruleset"
)

// DefaultDescriptorCacheSize bounds how many per-inode O_PATH
// descriptors are kept open at once. Beyond the cap, descriptors are
// opened transiently per operation. Correctness does not depend on
// retention; the cap only trades descriptor usage against openat
// traffic.
const DefaultDescriptorCacheSize = 256

// Options configures one pass-through mount.
type Options struct {
	// Mountpoint is the absolute directory the filesystem is layered
	// over. It doubles as the prefix of every path handed to the
	// rule engine, since inside the namespace the mounted tree
	// appears at its original location.
	Mountpoint string

	// Backing is the descriptor for the real directory, opened
	// before the mount was placed over it. The mount takes ownership
	// for its lifetime.
	Backing *os.File

	// Rules is the compiled deny rule set, shared read-only across
	// all mounts.
	Rules *ruleset.AccessRules

	// Denials receives one event per denied operation.
	Denials *denylog.Logger

	// DescriptorCacheSize overrides DefaultDescriptorCacheSize when
	// positive.
	DescriptorCacheSize int

	// Logger receives diagnostic messages. If nil, only errors are
	// logged, to stderr.
	Logger *slog.Logger

	// Debug enables go-fuse protocol tracing on stderr.
	Debug bool
}

// treeState is the per-mount state shared by every node in the tree.
type treeState struct {
	mountPoint string
	backing    *os.File
	backingFD  int
	rules      *ruleset.AccessRules
	denials    *denylog.Logger
	logger     *slog.Logger

	// cached counts currently cached per-inode descriptors against
	// descriptorCap.
	cached        atomic.Int32
	descriptorCap int32
}

// Mount layers the pass-through filesystem over options.Mountpoint.
// When Mount returns without error the mount is established and
// visible to path resolution; the caller must Unmount the returned
// server during shutdown.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Backing == nil {
		return nil, fmt.Errorf("backing directory handle is required")
	}
	if options.Rules == nil {
		return nil, fmt.Errorf("rule set is required")
	}
	if options.Denials == nil {
		return nil, fmt.Errorf("denial logger is required")
	}
	if options.DescriptorCacheSize <= 0 {
		options.DescriptorCacheSize = DefaultDescriptorCacheSize
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	tree := &treeState{
		mountPoint:    options.Mountpoint,
		backing:       options.Backing,
		backingFD:     int(options.Backing.Fd()),
		rules:         options.Rules,
		denials:       options.Denials,
		logger:        options.Logger,
		descriptorCap: int32(options.DescriptorCacheSize),
	}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, newEntry(tree), &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName: "denywall",
			Name:   "denywall",
			// Inside the user namespace the daemon holds
			// CAP_SYS_ADMIN, so the kernel accepts a direct mount(2);
			// go-fuse falls back to fusermount outside one.
			DirectMount: true,
			Debug:       options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting pass-through filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("pass-through filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// OpenBacking captures a descriptor for a real directory. Must be
// called before anything is mounted over the directory: the returned
// handle is the only way to reach the original contents afterwards.
func OpenBacking(dir string) (*os.File, error) {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening backing directory %s: %w", dir, err)
	}
	return os.NewFile(uintptr(fd), dir), nil
}
