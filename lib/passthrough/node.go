// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package passthrough

import (
	"context"
	"os"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/denywall/denywall/lib/ruleset"
)

// entryNode is one object in the mounted tree. Its identity (parent
// link, basename, kernel lookup count) lives in the embedded go-fuse
// Inode; the node itself adds only the per-mount state pointer and the
// lazily opened O_PATH descriptor slot.
type entryNode struct {
	gofuse.Inode
	tree *treeState

	// mu guards the lazy-open slot below.
	mu sync.Mutex
	fd int
}

var _ = (gofuse.InodeEmbedder)((*entryNode)(nil))
var _ = (gofuse.NodeLookuper)((*entryNode)(nil))
var _ = (gofuse.NodeGetattrer)((*entryNode)(nil))
var _ = (gofuse.NodeSetattrer)((*entryNode)(nil))
var _ = (gofuse.NodeOpener)((*entryNode)(nil))
var _ = (gofuse.NodeCreater)((*entryNode)(nil))
var _ = (gofuse.NodeMkdirer)((*entryNode)(nil))
var _ = (gofuse.NodeUnlinker)((*entryNode)(nil))
var _ = (gofuse.NodeRmdirer)((*entryNode)(nil))
var _ = (gofuse.NodeRenamer)((*entryNode)(nil))
var _ = (gofuse.NodeAccesser)((*entryNode)(nil))
var _ = (gofuse.NodeReaddirer)((*entryNode)(nil))
var _ = (gofuse.NodeReadlinker)((*entryNode)(nil))
var _ = (gofuse.NodeStatfser)((*entryNode)(nil))

func newEntry(tree *treeState) *entryNode {
	return &entryNode{tree: tree, fd: -1}
}

// fullPath is the node's lexical absolute path as seen inside the
// namespace: the mount point plus the kernel-visible name chain. It
// never dereferences symlinks, matching the rule engine's lexical
// semantics. A non-empty name addresses a child of this node.
func (n *entryNode) fullPath(name string) string {
	path := n.tree.mountPoint
	if rel := n.Path(n.Root()); rel != "" {
		path += "/" + rel
	}
	if name != "" {
		path += "/" + name
	}
	return path
}

func (n *entryNode) parentEntry() (string, *entryNode) {
	name, parent := n.Inode.Parent()
	if parent == nil {
		return "", nil
	}
	parentNode, ok := parent.Operations().(*entryNode)
	if !ok {
		return "", nil
	}
	return name, parentNode
}

// pathFD returns a descriptor usable as the dirfd in *at-family
// syscalls addressing this node's children (or the node itself via
// "."). For the root this is the backing handle; for any other node
// it is an O_PATH descriptor opened relative to the parent's
// descriptor, cached on the node while the descriptor budget allows.
// The release func must be called when done; it is a no-op for cached
// descriptors.
func (n *entryNode) pathFD() (int, func(), syscall.Errno) {
	noop := func() {}

	if n.IsRoot() {
		return n.tree.backingFD, noop, 0
	}

	n.mu.Lock()
	if n.fd >= 0 {
		fd := n.fd
		n.mu.Unlock()
		return fd, noop, 0
	}
	n.mu.Unlock()

	name, parent := n.parentEntry()
	if parent == nil {
		// Unlinked while a descriptor was still wanted.
		return -1, nil, syscall.ESTALE
	}
	parentFD, release, errno := parent.pathFD()
	if errno != 0 {
		return -1, nil, errno
	}
	fd, err := unix.Openat(parentFD, name, unix.O_PATH|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	release()
	if err != nil {
		return -1, nil, gofuse.ToErrno(err)
	}

	n.mu.Lock()
	if n.fd >= 0 {
		// Lost the race to another opener; keep the winner.
		cached := n.fd
		n.mu.Unlock()
		unix.Close(fd)
		return cached, noop, 0
	}
	if n.tree.cached.Add(1) <= n.tree.descriptorCap {
		n.fd = fd
		n.mu.Unlock()
		return fd, noop, 0
	}
	n.tree.cached.Add(-1)
	n.mu.Unlock()
	return fd, func() { unix.Close(fd) }, 0
}

// atParent returns a (dirfd, name) pair addressing this node itself,
// for syscalls that take a directory descriptor plus basename.
func (n *entryNode) atParent() (int, string, func(), syscall.Errno) {
	if n.IsRoot() {
		return n.tree.backingFD, ".", func() {}, 0
	}
	name, parent := n.parentEntry()
	if parent == nil {
		return -1, "", nil, syscall.ESTALE
	}
	fd, release, errno := parent.pathFD()
	if errno != 0 {
		return -1, "", nil, errno
	}
	return fd, name, release, 0
}

// openSelf opens the node's object for content access (data or
// directory enumeration), relative to the parent descriptor.
func (n *entryNode) openSelf(flags int) (int, syscall.Errno) {
	dirFD, name, release, errno := n.atParent()
	if errno != 0 {
		return -1, errno
	}
	defer release()
	fd, err := unix.Openat(dirFD, name, flags|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, gofuse.ToErrno(err)
	}
	return fd, 0
}

// OnForget runs when the kernel's lookup count for the inode reaches
// zero; the go-fuse bridge drives the FORGET protocol and invokes it.
// The cached descriptor is released here, and re-opened lazily if the
// entry is ever looked up again.
func (n *entryNode) OnForget() {
	n.mu.Lock()
	fd := n.fd
	n.fd = -1
	n.mu.Unlock()
	if fd >= 0 {
		unix.Close(fd)
		n.tree.cached.Add(-1)
	}
}

// Lookup resolves a child relative to this node's descriptor. No rule
// check: listing and existence are not concealed.
func (n *entryNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	dirFD, release, errno := n.pathFD()
	if errno != 0 {
		return nil, errno
	}
	defer release()

	var st unix.Stat_t
	if err := unix.Fstatat(dirFD, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return nil, gofuse.ToErrno(err)
	}
	fillAttr(&out.Attr, &st)

	child := n.NewInode(ctx, newEntry(n.tree), gofuse.StableAttr{
		Mode: st.Mode & unix.S_IFMT,
		Ino:  st.Ino,
	})
	return child, 0
}

// Getattr stats via descriptors; no rule check.
func (n *entryNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if handle, ok := f.(*fileHandle); ok {
		return handle.Getattr(ctx, out)
	}

	dirFD, name, release, errno := n.atParent()
	if errno != 0 {
		return errno
	}
	defer release()

	var st unix.Stat_t
	if err := unix.Fstatat(dirFD, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return gofuse.ToErrno(err)
	}
	fillAttr(&out.Attr, &st)
	return 0
}

// Open classifies the request from its flags, gates it through the
// rule engine, and on success opens the real object relative to the
// parent descriptor.
func (n *entryNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	op := operationForOpen(flags)
	if errno := n.tree.gate(ctx, n.fullPath(""), op); errno != 0 {
		return nil, 0, errno
	}

	dirFD, name, release, errno := n.atParent()
	if errno != 0 {
		return nil, 0, errno
	}
	defer release()

	openFlags := int(flags) & (unix.O_ACCMODE | unix.O_APPEND | unix.O_NONBLOCK | unix.O_TRUNC)
	fd, err := unix.Openat(dirFD, name, openFlags|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, 0, gofuse.ToErrno(err)
	}
	return newFileHandle(fd), 0, 0
}

// Create makes a new file under this directory, gated as a Write on
// the new path.
func (n *entryNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	if errno := n.tree.gate(ctx, n.fullPath(name), ruleset.Write); errno != 0 {
		return nil, nil, 0, errno
	}

	dirFD, release, errno := n.pathFD()
	if errno != 0 {
		return nil, nil, 0, errno
	}
	defer release()

	openFlags := int(flags)&(unix.O_ACCMODE|unix.O_APPEND|unix.O_NONBLOCK|unix.O_TRUNC|unix.O_EXCL) | unix.O_CREAT
	fd, err := unix.Openat(dirFD, name, openFlags|unix.O_CLOEXEC, mode)
	if err != nil {
		return nil, nil, 0, gofuse.ToErrno(err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, nil, 0, gofuse.ToErrno(err)
	}
	fillAttr(&out.Attr, &st)

	child := n.NewInode(ctx, newEntry(n.tree), gofuse.StableAttr{
		Mode: st.Mode & unix.S_IFMT,
		Ino:  st.Ino,
	})
	return child, newFileHandle(fd), 0, 0
}

// Mkdir is gated as a Write on the new directory path.
func (n *entryNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if errno := n.tree.gate(ctx, n.fullPath(name), ruleset.Write); errno != 0 {
		return nil, errno
	}

	dirFD, release, errno := n.pathFD()
	if errno != 0 {
		return nil, errno
	}
	defer release()

	if err := unix.Mkdirat(dirFD, name, mode); err != nil {
		return nil, gofuse.ToErrno(err)
	}
	var st unix.Stat_t
	if err := unix.Fstatat(dirFD, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return nil, gofuse.ToErrno(err)
	}
	fillAttr(&out.Attr, &st)

	child := n.NewInode(ctx, newEntry(n.tree), gofuse.StableAttr{
		Mode: st.Mode & unix.S_IFMT,
		Ino:  st.Ino,
	})
	return child, 0
}

// Unlink is gated as a Write on the removed path.
func (n *entryNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if errno := n.tree.gate(ctx, n.fullPath(name), ruleset.Write); errno != 0 {
		return errno
	}
	dirFD, release, errno := n.pathFD()
	if errno != 0 {
		return errno
	}
	defer release()
	return gofuse.ToErrno(unix.Unlinkat(dirFD, name, 0))
}

// Rmdir is gated as a Write on the removed path.
func (n *entryNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if errno := n.tree.gate(ctx, n.fullPath(name), ruleset.Write); errno != 0 {
		return errno
	}
	dirFD, release, errno := n.pathFD()
	if errno != 0 {
		return errno
	}
	defer release()
	return gofuse.ToErrno(unix.Unlinkat(dirFD, name, unix.AT_REMOVEDIR))
}

// Rename is gated as a Write on both the source and destination
// paths.
func (n *entryNode) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	destDir, ok := newParent.(*entryNode)
	if !ok {
		return syscall.EXDEV
	}
	if errno := n.tree.gate(ctx, n.fullPath(name), ruleset.Write); errno != 0 {
		return errno
	}
	if errno := n.tree.gate(ctx, destDir.fullPath(newName), ruleset.Write); errno != 0 {
		return errno
	}

	oldFD, releaseOld, errno := n.pathFD()
	if errno != 0 {
		return errno
	}
	defer releaseOld()
	newFD, releaseNew, errno := destDir.pathFD()
	if errno != 0 {
		return errno
	}
	defer releaseNew()

	return gofuse.ToErrno(unix.Renameat2(oldFD, name, newFD, newName, uint(flags)))
}

// Setattr forwards metadata changes, gating size/mode/owner mutations
// as a Write. Timestamp-only updates are not mutations of content or
// protection and pass ungated.
func (n *entryNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	size, hasSize := in.GetSize()
	mode, hasMode := in.GetMode()
	uid, hasUID := in.GetUID()
	gid, hasGID := in.GetGID()

	if hasSize || hasMode || hasUID || hasGID {
		if errno := n.tree.gate(ctx, n.fullPath(""), ruleset.Write); errno != 0 {
			return errno
		}
	}

	dirFD, name, release, errno := n.atParent()
	if errno != 0 {
		return errno
	}
	defer release()

	if hasMode {
		if err := unix.Fchmodat(dirFD, name, mode, 0); err != nil {
			return gofuse.ToErrno(err)
		}
	}
	if hasUID || hasGID {
		newUID, newGID := -1, -1
		if hasUID {
			newUID = int(uid)
		}
		if hasGID {
			newGID = int(gid)
		}
		if err := unix.Fchownat(dirFD, name, newUID, newGID, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return gofuse.ToErrno(err)
		}
	}
	if hasSize {
		if handle, ok := f.(*fileHandle); ok {
			if err := unix.Ftruncate(handle.fd, int64(size)); err != nil {
				return gofuse.ToErrno(err)
			}
		} else {
			fd, err := unix.Openat(dirFD, name, unix.O_WRONLY|unix.O_CLOEXEC, 0)
			if err != nil {
				return gofuse.ToErrno(err)
			}
			truncErr := unix.Ftruncate(fd, int64(size))
			unix.Close(fd)
			if truncErr != nil {
				return gofuse.ToErrno(truncErr)
			}
		}
	}
	atime, hasATime := in.GetATime()
	mtime, hasMTime := in.GetMTime()
	if hasATime || hasMTime {
		// UTIME_OMIT leaves a timestamp that was not requested as it is.
		times := []unix.Timespec{{Nsec: unix.UTIME_OMIT}, {Nsec: unix.UTIME_OMIT}}
		if hasATime {
			times[0] = unix.NsecToTimespec(atime.UnixNano())
		}
		if hasMTime {
			times[1] = unix.NsecToTimespec(mtime.UnixNano())
		}
		if err := unix.UtimesNanoAt(dirFD, name, times, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return gofuse.ToErrno(err)
		}
	}

	var st unix.Stat_t
	if err := unix.Fstatat(dirFD, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return gofuse.ToErrno(err)
	}
	fillAttr(&out.Attr, &st)
	return 0
}

// Access maps the mask bits to operations and gates each before
// forwarding the check to the real filesystem. A bare F_OK probe maps
// to no operation and is always forwarded.
func (n *entryNode) Access(ctx context.Context, mask uint32) syscall.Errno {
	path := n.fullPath("")
	for _, op := range operationsForAccessMask(mask) {
		if errno := n.tree.gate(ctx, path, op); errno != 0 {
			return errno
		}
	}

	dirFD, name, release, errno := n.atParent()
	if errno != 0 {
		return errno
	}
	defer release()
	return gofuse.ToErrno(unix.Faccessat(dirFD, name, mask, 0))
}

// Readdir enumerates via the backing descriptor chain; listing is not
// gated.
func (n *entryNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	fd, errno := n.openSelf(unix.O_RDONLY | unix.O_DIRECTORY)
	if errno != 0 {
		return nil, errno
	}
	dir := os.NewFile(uintptr(fd), n.fullPath(""))
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, gofuse.ToErrno(err)
	}

	result := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		mode := uint32(unix.S_IFREG)
		switch {
		case entry.IsDir():
			mode = unix.S_IFDIR
		case entry.Type()&os.ModeSymlink != 0:
			mode = unix.S_IFLNK
		}
		result = append(result, fuse.DirEntry{Name: entry.Name(), Mode: mode})
	}
	return gofuse.NewListDirStream(result), 0
}

// Readlink reads the target bytes without resolving them.
func (n *entryNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	dirFD, name, release, errno := n.atParent()
	if errno != 0 {
		return nil, errno
	}
	defer release()

	buf := make([]byte, unix.PathMax)
	count, err := unix.Readlinkat(dirFD, name, buf)
	if err != nil {
		return nil, gofuse.ToErrno(err)
	}
	return buf[:count], 0
}

// Statfs forwards filesystem statistics from the backing descriptor
// so tools like df see the real filesystem underneath.
func (n *entryNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var st unix.Statfs_t
	if err := unix.Fstatfs(n.tree.backingFD, &st); err != nil {
		return gofuse.ToErrno(err)
	}
	out.Blocks = st.Blocks
	out.Bfree = st.Bfree
	out.Bavail = st.Bavail
	out.Files = st.Files
	out.Ffree = st.Ffree
	out.Bsize = uint32(st.Bsize)
	out.NameLen = uint32(st.Namelen)
	out.Frsize = uint32(st.Frsize)
	return 0
}

// fillAttr copies a stat result into a FUSE attribute block.
func fillAttr(out *fuse.Attr, st *unix.Stat_t) {
	out.Ino = st.Ino
	out.Size = uint64(st.Size)
	out.Blocks = uint64(st.Blocks)
	out.Blksize = uint32(st.Blksize)
	out.Atime = uint64(st.Atim.Sec)
	out.Atimensec = uint32(st.Atim.Nsec)
	out.Mtime = uint64(st.Mtim.Sec)
	out.Mtimensec = uint32(st.Mtim.Nsec)
	out.Ctime = uint64(st.Ctim.Sec)
	out.Ctimensec = uint32(st.Ctim.Nsec)
	out.Mode = st.Mode
	out.Nlink = uint32(st.Nlink)
	out.Owner = fuse.Owner{Uid: st.Uid, Gid: st.Gid}
	out.Rdev = uint32(st.Rdev)
}
