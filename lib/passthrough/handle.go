// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package passthrough

import (
	"context"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// fileHandle wraps the real descriptor returned by a gated open. Read
// and write are positional against it; the open already performed the
// rule check, so there is no recheck here.
type fileHandle struct {
	fd int

	// releaseOnce guards the close: the kernel sends RELEASE exactly
	// once per open, but Flush-after-error paths can race it.
	releaseOnce sync.Once
}

var _ = (gofuse.FileReader)((*fileHandle)(nil))
var _ = (gofuse.FileWriter)((*fileHandle)(nil))
var _ = (gofuse.FileReleaser)((*fileHandle)(nil))
var _ = (gofuse.FileFlusher)((*fileHandle)(nil))
var _ = (gofuse.FileFsyncer)((*fileHandle)(nil))
var _ = (gofuse.FileGetattrer)((*fileHandle)(nil))

func newFileHandle(fd int) *fileHandle {
	return &fileHandle{fd: fd}
}

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	count, err := unix.Pread(h.fd, dest, off)
	if err != nil {
		return nil, gofuse.ToErrno(err)
	}
	return fuse.ReadResultData(dest[:count]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	count, err := unix.Pwrite(h.fd, data, off)
	if err != nil {
		return 0, gofuse.ToErrno(err)
	}
	return uint32(count), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	h.releaseOnce.Do(func() {
		unix.Close(h.fd)
	})
	return 0
}

// Flush validates the descriptor without closing it; the dup-close
// pair surfaces deferred write errors the way close(2) would.
func (h *fileHandle) Flush(ctx context.Context) syscall.Errno {
	dup, err := unix.Dup(h.fd)
	if err != nil {
		return gofuse.ToErrno(err)
	}
	return gofuse.ToErrno(unix.Close(dup))
}

func (h *fileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	if flags&1 != 0 {
		return gofuse.ToErrno(unix.Fdatasync(h.fd))
	}
	return gofuse.ToErrno(unix.Fsync(h.fd))
}

func (h *fileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	var st unix.Stat_t
	if err := unix.Fstat(h.fd, &st); err != nil {
		return gofuse.ToErrno(err)
	}
	fillAttr(&out.Attr, &st)
	return 0
}
