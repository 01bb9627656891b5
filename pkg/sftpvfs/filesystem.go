package sftpvfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/mossforge/sftpvfs/pkg/vfspath"
)

// maxSymlinkHops bounds realPath's link-following loop; the SFTP
// protocol has no cycle-detection primitive of its own.
const maxSymlinkHops = 32

// maxInMemoryCopyBytes caps the single-channel copy-through-memory
// fallback (DESIGN NOTES: "implementers should cap the buffer - but the
// source does not; this is noted as a defect rather than imitated").
const maxInMemoryCopyBytes = 64 << 20

// Filesystem is spec.md §3/§4.5's coordinator: bound to one remote
// server identity, owning a pool and a captured default directory. It
// holds no per-operation mutable state of its own; serialization lives
// entirely in the pool (spec.md §5).
type Filesystem struct {
	id       string // uuid, for log correlation across concurrent callers
	identity string // scheme+user+host+port, used by SameFilesystem
	rootURI  string

	pool *ChannelPool
	cfg  Config
	log  logrus.FieldLogger

	mu         sync.RWMutex
	defaultDir vfspath.Path
	closed     bool
}

// AccessMode is one of the bits checkAccess tests.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessExecute
)

// NewFilesystem dials the initial pool and captures the server's
// reported working directory as the default directory, per spec.md §3
// "Filesystem ... its default (working) directory (captured from pwd on
// first channel)". A nil log defaults to logrus's standard logger.
func NewFilesystem(ctx context.Context, id, identity, rootURI string, cfg Config, dialer sshDialer, addr string, sshConfig *ssh.ClientConfig, log logrus.FieldLogger) (*Filesystem, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	pool, err := NewChannelPool(cfg.Pool, dialer, addr, sshConfig, log)
	if err != nil {
		return nil, errors.Wrap(err, "create channel pool")
	}

	fs := &Filesystem{
		id:       id,
		identity: identity,
		rootURI:  rootURI,
		pool:     pool,
		cfg:      cfg,
		log:      log.WithField("filesystem", id),
	}

	ch, err := pool.Acquire(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	wd, err := ch.getwd()
	pool.Release(ch)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	fs.defaultDir = vfspath.Parse(wd)
	if cfg.DefaultDir != "" {
		fs.defaultDir = vfspath.Parse(cfg.DefaultDir).ToAbsolute(fs.defaultDir)
	}

	return fs, nil
}

// SameFilesystem reports whether a and b were created against the same
// normalized identity (spec.md GLOSSARY "Identity").
func SameFilesystem(a, b *Filesystem) bool { return a.identity == b.identity }

func (fs *Filesystem) checkOpen(op, path string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.closed {
		return closedError(op, path)
	}
	return nil
}

func (fs *Filesystem) toAbsolute(p vfspath.Path) vfspath.Path {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return p.ToAbsolute(fs.defaultDir)
}

// Close disconnects the pool; subsequent operations fail with Closed.
func (fs *Filesystem) Close() error {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return nil
	}
	fs.closed = true
	fs.mu.Unlock()
	return fs.pool.Close()
}

// FileStore returns the single file store backing this filesystem
// (spec.md §4.7).
func (fs *Filesystem) FileStore() *FileStore { return newFileStore(fs) }

// NewInputStream implements spec.md §4.5 newInputStream.
func (fs *Filesystem) NewInputStream(ctx context.Context, path string, opts []OpenOption) (*InputStream, error) {
	if err := fs.checkOpen(opNewInputStream, path); err != nil {
		return nil, err
	}
	resolved, err := resolveForInput(path, opts)
	if err != nil {
		return nil, err
	}

	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	f, err := ch.open(abs)
	if err != nil {
		fs.pool.Release(ch)
		return nil, err
	}

	return newInputStream(f, ch, fs.pool, abs, resolved.DeleteOnClose), nil
}

// NewOutputStream implements spec.md §4.5 newOutputStream.
func (fs *Filesystem) NewOutputStream(ctx context.Context, path string, opts []OpenOption) (*OutputStream, error) {
	if err := fs.checkOpen(opNewOutputStream, path); err != nil {
		return nil, err
	}
	resolved, err := resolveForOutput(path, opts)
	if err != nil {
		return nil, err
	}

	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	existing, statErr := ch.stat(abs)
	switch {
	case resolved.CreateNew:
		if statErr == nil {
			fs.pool.Release(ch)
			return nil, newError(opNewOutputStream, abs, KindAlreadyExists, nil)
		}
	case !resolved.Create:
		if statErr != nil {
			fs.pool.Release(ch)
			return nil, statErr
		}
		if existing.IsDir() {
			fs.pool.Release(ch)
			return nil, newError(opNewOutputStream, abs, KindIsDirectory, nil)
		}
	default:
		if statErr == nil && existing.IsDir() {
			fs.pool.Release(ch)
			return nil, newError(opNewOutputStream, abs, KindIsDirectory, nil)
		}
	}

	f, err := ch.openFile(abs, outputFlags(resolved))
	if err != nil {
		fs.pool.Release(ch)
		return nil, err
	}

	return newOutputStream(f, ch, fs.pool, abs, resolved.DeleteOnClose), nil
}

func outputFlags(r resolvedOpen) int {
	flags := os.O_WRONLY
	if r.Append {
		flags |= os.O_APPEND
	}
	if r.Truncate {
		flags |= os.O_TRUNC
	}
	if r.Create {
		flags |= os.O_CREATE
	}
	if r.CreateNew {
		flags |= os.O_EXCL
	}
	return flags
}

// NewByteChannel implements spec.md §4.5 newByteChannel.
func (fs *Filesystem) NewByteChannel(ctx context.Context, path string, opts []OpenOption, attrs []AttributeEdit) (*ByteChannel, error) {
	if err := fs.checkOpen("newbytechannel", path); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		return nil, newError("newbytechannel", path, KindUnsupported, nil)
	}
	resolved, err := resolveForByteChannel(path, opts)
	if err != nil {
		return nil, err
	}

	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	if resolved.Write {
		return fs.newByteChannelForWrite(ctx, abs, resolved)
	}
	return fs.newByteChannelForRead(ctx, abs)
}

func (fs *Filesystem) newByteChannelForRead(ctx context.Context, abs string) (*ByteChannel, error) {
	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer fs.pool.Release(ch)

	info, err := ch.stat(abs)
	if err != nil {
		return nil, err
	}
	f, err := ch.open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return newByteChannelForRead(f, info.Size())
}

func (fs *Filesystem) newByteChannelForWrite(ctx context.Context, abs string, resolved resolvedOpen) (*ByteChannel, error) {
	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var initial []byte
	if resolved.Append {
		if f, err := ch.open(abs); err == nil {
			initial, _ = io.ReadAll(f)
			f.Close()
		}
	}

	flags := outputFlags(resolved)
	bc := newByteChannelForWrite(initial, resolved.Append, func(data []byte) error {
		defer fs.pool.Release(ch)
		f, err := ch.openFile(abs, flags)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.Write(data)
		return err
	})
	return bc, nil
}

// NewDirectoryStream implements spec.md §4.5 newDirectoryStream.
func (fs *Filesystem) NewDirectoryStream(ctx context.Context, path string, filter DirFilter) (*DirectoryStream, error) {
	if err := fs.checkOpen(opListFiles, path); err != nil {
		return nil, err
	}
	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer fs.pool.Release(ch)

	infos, err := ch.readDir(abs)
	if err != nil {
		// A listing request on a non-directory can fail outright instead
		// of returning entries; stat so that case is NotDirectory too.
		if info, statErr := ch.stat(abs); statErr == nil && !info.IsDir() {
			return nil, newError(opListFiles, abs, KindNotDirectory, err)
		}
		return nil, err
	}

	hasDotEntries := false
	for _, fi := range infos {
		if isDotOrDotDot(fi.Name()) {
			hasDotEntries = true
			break
		}
	}
	if !hasDotEntries {
		info, err := ch.stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, newError(opListFiles, abs, KindNotDirectory, nil)
		}
	}

	return newDirectoryStream(infos, filter), nil
}

// CreateDirectory implements spec.md §4.5 createDirectory.
func (fs *Filesystem) CreateDirectory(ctx context.Context, path string, attrs []AttributeEdit) error {
	if err := fs.checkOpen(opCreateDir, path); err != nil {
		return err
	}
	if len(attrs) > 0 {
		return newError(opCreateDir, path, KindUnsupported, nil)
	}
	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer fs.pool.Release(ch)

	return ch.mkdir(abs)
}

// Delete implements spec.md §4.5 delete.
func (fs *Filesystem) Delete(ctx context.Context, path string) error {
	if err := fs.checkOpen(opDelete, path); err != nil {
		return err
	}
	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer fs.pool.Release(ch)

	fi, err := ch.lstat(abs)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return ch.removeDirectory(abs)
	}
	return ch.remove(abs)
}

// ReadSymbolicLink implements spec.md §4.5 readSymbolicLink.
func (fs *Filesystem) ReadSymbolicLink(ctx context.Context, path string) (vfspath.Path, error) {
	if err := fs.checkOpen(opReadLink, path); err != nil {
		return vfspath.Path{}, err
	}
	p := fs.toAbsolute(vfspath.Parse(path))

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return vfspath.Path{}, err
	}
	defer fs.pool.Release(ch)

	target, err := ch.readLink(p.String())
	if err != nil {
		return vfspath.Path{}, err
	}

	targetPath := vfspath.Parse(target)
	if targetPath.IsAbsolute() {
		return targetPath, nil
	}
	if parent, ok := p.GetParent(); ok {
		return parent.Resolve(targetPath), nil
	}
	return targetPath, nil
}

// IsHidden implements spec.md §4.5 isHidden.
func (fs *Filesystem) IsHidden(ctx context.Context, path string) (bool, error) {
	if err := fs.checkOpen("ishidden", path); err != nil {
		return false, err
	}
	p := fs.toAbsolute(vfspath.Parse(path))

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer fs.pool.Release(ch)

	if _, err := ch.stat(p.String()); err != nil {
		return false, err
	}

	name, ok := p.GetFileName()
	if !ok {
		return false, nil
	}
	n := name.String()
	return strings.HasPrefix(n, ".") && n != "." && n != "..", nil
}

// CheckAccess implements spec.md §4.5 checkAccess.
func (fs *Filesystem) CheckAccess(ctx context.Context, path string, modes ...AccessMode) error {
	if err := fs.checkOpen("checkaccess", path); err != nil {
		return err
	}
	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer fs.pool.Release(ch)

	fi, err := ch.stat(abs)
	if err != nil {
		return err
	}
	perm := fi.Mode().Perm()

	for _, mode := range modes {
		var bit os.FileMode
		switch mode {
		case AccessRead:
			bit = 0o400
		case AccessWrite:
			bit = 0o200
		case AccessExecute:
			bit = 0o100
		}
		if perm&bit == 0 {
			return newError("checkaccess", abs, KindAccessDenied, nil)
		}
	}
	return nil
}

// ReadAttributes implements spec.md §4.5's attributes-read API.
func (fs *Filesystem) ReadAttributes(ctx context.Context, path string, view View, names []string) (map[string]any, error) {
	if err := fs.checkOpen("getattributes", path); err != nil {
		return nil, err
	}
	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer fs.pool.Release(ch)

	fi, err := ch.stat(abs)
	if err != nil {
		return nil, err
	}
	return ReadAttributes(abs, attributesFromFileInfo(fi), view, names)
}

// SetAttribute implements spec.md §4.5's attributes-write API.
func (fs *Filesystem) SetAttribute(ctx context.Context, path string, edit AttributeEdit) error {
	if err := fs.checkOpen(opSetOwner, path); err != nil {
		return err
	}
	abs := fs.toAbsolute(vfspath.Parse(path)).String()

	resolved, err := resolveSetAttribute(abs, edit)
	if err != nil {
		return err
	}

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer fs.pool.Release(ch)

	switch {
	case resolved.ModTime != nil:
		fi, err := ch.stat(abs)
		if err != nil {
			return err
		}
		return ch.chtimes(abs, attributesFromFileInfo(fi).AccessTime, *resolved.ModTime)
	case resolved.UID != nil:
		fi, err := ch.stat(abs)
		if err != nil {
			return err
		}
		return ch.chown(abs, *resolved.UID, attributesFromFileInfo(fi).GID)
	case resolved.GID != nil:
		fi, err := ch.stat(abs)
		if err != nil {
			return err
		}
		return ch.chown(abs, attributesFromFileInfo(fi).UID, *resolved.GID)
	case resolved.Permissions != nil:
		return ch.chmod(abs, *resolved.Permissions)
	default:
		return newError(opSetOwner, abs, KindUnsupported, nil)
	}
}

// TotalSpace, UsableSpace, and UnallocatedSpace implement spec.md §4.5's
// space queries: fragmentSize x blockCount for each of total/available/
// free blocks, with a sentinel for servers lacking the statVFS
// extension (spec.md §9 open question).
func (fs *Filesystem) TotalSpace(ctx context.Context) (int64, error) {
	return fs.spaceValue(ctx, func(v statVFSLike) uint64 { return v.Frsize * v.Blocks })
}

func (fs *Filesystem) UsableSpace(ctx context.Context) (int64, error) {
	return fs.spaceValue(ctx, func(v statVFSLike) uint64 { return v.Frsize * v.Bavail })
}

func (fs *Filesystem) UnallocatedSpace(ctx context.Context) (int64, error) {
	return fs.spaceValue(ctx, func(v statVFSLike) uint64 { return v.Frsize * v.Bfree })
}

// statVFSLike exposes the block-count fields of *sftp.StatVFS this
// package needs, named to keep spaceValue's signature readable.
type statVFSLike struct {
	Frsize, Blocks, Bfree, Bavail uint64
}

func (fs *Filesystem) spaceValue(ctx context.Context, calc func(statVFSLike) uint64) (int64, error) {
	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer fs.pool.Release(ch)

	vfs, err := ch.statVFS(fs.defaultDirString())
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) && verr.Kind == KindUnsupported {
			return unknownLarge, nil
		}
		return 0, err
	}
	return int64(calc(statVFSLike{Frsize: vfs.Frsize, Blocks: vfs.Blocks, Bfree: vfs.Bfree, Bavail: vfs.Bavail})), nil
}

func (fs *Filesystem) defaultDirString() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.defaultDir.String()
}

// --- real path resolution -------------------------------------------

// RealPath resolves p to its fully symlink-resolved, normalized absolute
// form (spec.md GLOSSARY "Real path").
func (fs *Filesystem) RealPath(ctx context.Context, p vfspath.Path) (vfspath.Path, error) {
	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return vfspath.Path{}, err
	}
	defer fs.pool.Release(ch)
	return resolveRealPath(ch, fs.toAbsolute(p), nil)
}

// resolveRealPath walks the symlink chain starting at start using an
// already-acquired channel, never acquiring one of its own: callers that
// already hold a channel (copy/move on a single-channel pool) must reuse
// it to avoid the exact deadlock spec.md §5 calls out. memo, when
// non-nil, is a bounded cache scoped to one call graph (one copy, move,
// or isSameFile invocation) so repeated stats of the same path within
// that single operation do not cost a network round trip each time; it
// is never retained past that call, so it cannot introduce the
// cross-channel "last writer wins" hazard spec.md §5 describes.
func resolveRealPath(ch *Channel, start vfspath.Path, memo *lru.Cache[string, os.FileInfo]) (vfspath.Path, error) {
	current := start.Normalize()
	for i := 0; i < maxSymlinkHops; i++ {
		fi, err := memoLstat(ch, current.String(), memo)
		if err != nil {
			return vfspath.Path{}, err
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			return current, nil
		}
		target, err := ch.readLink(current.String())
		if err != nil {
			return vfspath.Path{}, err
		}
		targetPath := vfspath.Parse(target)
		if targetPath.IsAbsolute() {
			current = targetPath.Normalize()
			continue
		}
		parent, ok := current.GetParent()
		if !ok {
			parent = vfspath.Root
		}
		current = parent.Resolve(targetPath).Normalize()
	}
	return vfspath.Path{}, newError(opReadLink, start.String(), KindIO, fmt.Errorf("too many levels of symbolic links"))
}

func memoLstat(ch *Channel, path string, memo *lru.Cache[string, os.FileInfo]) (os.FileInfo, error) {
	key := "L:" + path
	if memo != nil {
		if fi, ok := memo.Get(key); ok {
			return fi, nil
		}
	}
	fi, err := ch.lstat(path)
	if err != nil {
		return nil, err
	}
	if memo != nil {
		memo.Add(key, fi)
	}
	return fi, nil
}

func newCallGraphMemo() *lru.Cache[string, os.FileInfo] {
	c, _ := lru.New[string, os.FileInfo](32)
	return c
}

// IsSameFile implements spec.md §4.5 isSameFile.
func IsSameFile(ctx context.Context, fsA, fsB *Filesystem, a, b vfspath.Path) (bool, error) {
	if a.Equal(b) && SameFilesystem(fsA, fsB) {
		return true, nil
	}
	if !SameFilesystem(fsA, fsB) {
		return false, nil
	}

	memo := newCallGraphMemo()
	chA, err := fsA.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer fsA.pool.Release(chA)

	realA, err := resolveRealPath(chA, fsA.toAbsolute(a), memo)
	if err != nil {
		return false, err
	}
	realB, err := resolveRealPath(chA, fsB.toAbsolute(b), memo)
	if err != nil {
		return false, err
	}
	return realA.Equal(realB), nil
}

// IsSameFile is the common case of the package-level IsSameFile where
// both paths are resolved against the same Filesystem instance.
func (fs *Filesystem) IsSameFile(ctx context.Context, a, b vfspath.Path) (bool, error) {
	return IsSameFile(ctx, fs, fs, a, b)
}

// --- copy / move ------------------------------------------------------

// Copy implements spec.md §4.5 copy, dispatching to the same-filesystem
// or cross-filesystem strategy it describes.
func Copy(ctx context.Context, srcFS, tgtFS *Filesystem, source, target vfspath.Path, opts []CopyOption) error {
	resolved, err := resolveCopyOptions(source.String(), opts)
	if err != nil {
		return err
	}

	realSource, err := srcFS.RealPath(ctx, source)
	if err != nil {
		return err
	}

	if SameFilesystem(srcFS, tgtFS) {
		return copySameFilesystem(ctx, srcFS, realSource, tgtFS.toAbsolute(target), resolved)
	}
	return copyCrossFilesystem(ctx, srcFS, tgtFS, realSource, tgtFS.toAbsolute(target), resolved)
}

// Copy is the common same-filesystem convenience wrapper.
func (fs *Filesystem) Copy(ctx context.Context, source, target vfspath.Path, opts []CopyOption) error {
	return Copy(ctx, fs, fs, source, target, opts)
}

func copyCrossFilesystem(ctx context.Context, srcFS, tgtFS *Filesystem, realSource, targetAbs vfspath.Path, resolved resolvedCopy) error {
	srcCh, err := srcFS.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer srcFS.pool.Release(srcCh)

	tgtCh, err := tgtFS.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer tgtFS.pool.Release(tgtCh)

	if _, err := tgtCh.stat(targetAbs.String()); err == nil {
		if !resolved.ReplaceExisting {
			return newPairError(opCopy, realSource.String(), targetAbs.String(), KindAlreadyExists, nil)
		}
	}

	srcInfo, err := srcCh.stat(realSource.String())
	if err != nil {
		return err
	}
	if srcInfo.IsDir() {
		return tgtCh.mkdir(targetAbs.String())
	}

	srcFile, err := srcCh.open(realSource.String())
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := tgtCh.openFile(targetAbs.String(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

func copySameFilesystem(ctx context.Context, fs *Filesystem, realSource, targetAbs vfspath.Path, resolved resolvedCopy) error {
	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer fs.pool.Release(ch)

	memo := newCallGraphMemo()

	srcInfo, err := ch.stat(realSource.String())
	if err != nil {
		return err
	}

	if _, statErr := ch.stat(targetAbs.String()); statErr == nil {
		realTarget, rtErr := resolveRealPath(ch, targetAbs, memo)
		if rtErr == nil && realSource.Equal(realTarget) {
			return nil // same absolute path: no-op
		}
		if !resolved.ReplaceExisting {
			return newPairError(opCopy, realSource.String(), targetAbs.String(), KindAlreadyExists, nil)
		}
	}

	if srcInfo.IsDir() {
		return ch.mkdir(targetAbs.String())
	}

	if ch2, err2 := fs.pool.AcquireOrCreate(ctx); err2 == nil {
		defer fs.pool.Release(ch2)
		return copyAcrossTwoChannels(ch, ch2, realSource, targetAbs)
	}

	return copyStagedThroughMemory(ch, realSource, targetAbs)
}

func copyAcrossTwoChannels(srcCh, dstCh *Channel, realSource, targetAbs vfspath.Path) error {
	srcFile, err := srcCh.open(realSource.String())
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := dstCh.openFile(targetAbs.String(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// copyStagedThroughMemory is the single-channel fallback DESIGN NOTES
// describes: correct because a single channel is strictly sequenced, but
// bounded here (unlike the source) to avoid unbounded memory growth.
func copyStagedThroughMemory(ch *Channel, realSource, targetAbs vfspath.Path) error {
	srcFile, err := ch.open(realSource.String())
	if err != nil {
		return err
	}
	limited := io.LimitReader(srcFile, maxInMemoryCopyBytes+1)
	data, readErr := io.ReadAll(limited)
	_ = srcFile.Close()
	if readErr != nil {
		return readErr
	}
	if int64(len(data)) > maxInMemoryCopyBytes {
		return newPairError(opCopy, realSource.String(), targetAbs.String(), KindUnsupported,
			fmt.Errorf("source exceeds %d byte in-memory copy fallback limit", maxInMemoryCopyBytes))
	}

	dstFile, err := ch.openFile(targetAbs.String(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = dstFile.Write(data)
	return err
}

// Move implements spec.md §4.5 move.
func Move(ctx context.Context, srcFS, tgtFS *Filesystem, source, target vfspath.Path, opts []CopyOption) error {
	resolved, err := resolveCopyOptions(source.String(), opts)
	if err != nil {
		return err
	}

	abs := srcFS.toAbsolute(source)
	if abs.Equal(vfspath.Root) {
		return newError(opMove, abs.String(), KindDirectoryNotEmpty, nil)
	}

	if SameFilesystem(srcFS, tgtFS) {
		return moveSameFilesystem(ctx, srcFS, abs, tgtFS.toAbsolute(target), resolved)
	}
	return moveCrossFilesystem(ctx, srcFS, tgtFS, source, target, opts, resolved)
}

// Move is the common same-filesystem convenience wrapper.
func (fs *Filesystem) Move(ctx context.Context, source, target vfspath.Path, opts []CopyOption) error {
	return Move(ctx, fs, fs, source, target, opts)
}

func moveSameFilesystem(ctx context.Context, fs *Filesystem, sourceAbs, targetAbs vfspath.Path, resolved resolvedCopy) error {
	if sourceAbs.Normalize().Equal(targetAbs.Normalize()) {
		return nil // same absolute path: no-op, mirroring copySameFilesystem's check
	}

	ch, err := fs.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer fs.pool.Release(ch)

	if existing, statErr := ch.stat(targetAbs.String()); statErr == nil {
		if !resolved.ReplaceExisting {
			return newPairError(opMove, sourceAbs.String(), targetAbs.String(), KindAlreadyExists, nil)
		}
		if existing.IsDir() {
			if err := ch.removeDirectory(targetAbs.String()); err != nil {
				return err
			}
		} else if err := ch.remove(targetAbs.String()); err != nil {
			return err
		}
	}

	return ch.rename(sourceAbs.String(), targetAbs.String())
}

func moveCrossFilesystem(ctx context.Context, srcFS, tgtFS *Filesystem, source, target vfspath.Path, opts []CopyOption, resolved resolvedCopy) error {
	sourceAbs := srcFS.toAbsolute(source)

	if resolved.AtomicMove {
		return newPairError(opMove, sourceAbs.String(), tgtFS.toAbsolute(target).String(), KindUnsupported,
			fmt.Errorf("atomic move is not supported across filesystems"))
	}

	srcCh, err := srcFS.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	fi, err := srcCh.lstat(sourceAbs.String())
	srcFS.pool.Release(srcCh)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return newPairError(opMove, sourceAbs.String(), tgtFS.toAbsolute(target).String(), KindUnsupported,
			fmt.Errorf("symbolic links cannot be moved across filesystems"))
	}

	if err := Copy(ctx, srcFS, tgtFS, source, target, opts); err != nil {
		return err
	}
	return srcFS.Delete(ctx, source.String())
}
