package sbfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shamirnfs/shamirnfs/pkg/audit"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/channelbuffer"
	"github.com/shamirnfs/shamirnfs/pkg/ferr"
	"github.com/shamirnfs/shamirnfs/pkg/ssc"
)

var _ channelbuffer.FlushNotifier = (*Filesystem)(nil)

// Filesystem is the assembled SBFS: Namespace Index + Content +
// Channel Buffer + audit logging, the unit NFSv3 handlers (and the
// MOUNT protocol) call into. One Filesystem serves one namespace root.
type Filesystem struct {
	NS      *Namespace
	Content *Content
	Buffer  *channelbuffer.Buffer
	Audit   *audit.Log

	root      string
	sizeLocks sync.Map // file ID -> *sync.Mutex guarding the size update in Write
}

// Config wires together everything Open needs; the caller has already
// constructed the Backing Store, SSC codec, and audit log (they may be
// shared across multiple Filesystems in a multi-export deployment).
type Config struct {
	Store          backingstore.Store
	Codec          *ssc.Codec
	Audit          *audit.Log
	Root           string
	FlushThreshold int
	IdleFlush      time.Duration
}

func Open(ctx context.Context, cfg Config) (*Filesystem, error) {
	ns, err := OpenNamespace(ctx, cfg.Store, cfg.Store.(backingstore.Allocator), cfg.Root)
	if err != nil {
		return nil, err
	}
	content := NewContent(cfg.Store, cfg.Codec, cfg.Root)
	fs := &Filesystem{
		NS:      ns,
		Content: content,
		Audit:   cfg.Audit,
		root:    cfg.Root,
	}
	fs.Buffer = channelbuffer.New(content, channelbuffer.Config{
		FlushThreshold: cfg.FlushThreshold,
		IdleTimeout:    cfg.IdleFlush,
		Notifier:       fs,
	})
	return fs, nil
}

// NotifyFlush implements channelbuffer.FlushNotifier: every time the
// Channel Buffer flushes fileID's pending writes through SSC into the
// Backing Store, a Disassembled event is recorded for it.
func (fs *Filesystem) NotifyFlush(ctx context.Context, fileID uint64) error {
	if fs.Audit == nil {
		return nil
	}
	path, err := fs.NS.PathFor(ctx, fileID)
	if err != nil {
		return err
	}
	_, err = fs.Audit.Append(ctx, audit.Disassembled, path, []byte("flushed pending writes"))
	return err
}

// Read returns up to length bytes of fileID's content starting at
// offset, clamped to the inode's recorded size -- the content layer
// always stores full BlockSize-aligned blocks, so truncation to the
// authoritative file size happens here.
func (fs *Filesystem) Read(ctx context.Context, fileID uint64, offset int64, length int) ([]byte, bool, error) {
	inode, err := fs.NS.Getattr(ctx, fileID)
	if err != nil {
		return nil, false, err
	}
	if inode.Attr.Type != TypeRegular {
		return nil, false, ferr.New(ferr.InvalidArgument, "not a regular file")
	}

	size := int64(inode.Attr.Size)
	if offset >= size {
		return nil, true, nil
	}
	if offset+int64(length) > size {
		length = int(size - offset)
	}

	data, err := fs.Buffer.Read(ctx, fileID, offset, length)
	if err != nil {
		return nil, false, err
	}

	if fs.Audit != nil {
		if path, perr := fs.NS.PathFor(ctx, fileID); perr == nil {
			_, _ = fs.Audit.Append(ctx, audit.Reassembled, path, []byte(fmt.Sprintf("read offset=%d len=%d", offset, length)))
		}
	}

	eof := offset+int64(length) >= size
	return data, eof, nil
}

// Write buffers data at offset through the Channel Buffer and grows
// the inode's recorded size if the write extends past current EOF.
func (fs *Filesystem) Write(ctx context.Context, fileID uint64, offset int64, data []byte) (uint32, error) {
	inode, err := fs.NS.Getattr(ctx, fileID)
	if err != nil {
		return 0, err
	}
	if inode.Attr.Type != TypeRegular {
		return 0, ferr.New(ferr.InvalidArgument, "not a regular file")
	}

	if err := fs.Buffer.Write(ctx, fileID, offset, data); err != nil {
		return 0, err
	}

	newSize := offset + int64(len(data))
	lock, _ := fs.sizeLocks.LoadOrStore(fileID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	inode, err = fs.NS.Getattr(ctx, fileID)
	if err != nil {
		return 0, err
	}
	if newSize > int64(inode.Attr.Size) {
		size := uint64(newSize)
		if _, err := fs.NS.Setattr(ctx, fileID, SetAttr{Size: &size}); err != nil {
			return 0, err
		}
	}
	return uint32(len(data)), nil
}

// Commit flushes fileID's pending Channel Buffer writes, matching
// NFSv3 COMMIT's "data is now stable" guarantee.
func (fs *Filesystem) Commit(ctx context.Context, fileID uint64) error {
	return fs.Buffer.Flush(ctx, fileID)
}

// Create, Mkdir, Symlink, Remove, Rmdir, Rename, Readdir, Readlink,
// Getattr, Setattr delegate to the Namespace Index. Namespace mutations
// are not audited events: TWMA only records disassembly and
// reassembly of file content (Read and flushed Write).

func (fs *Filesystem) Create(ctx context.Context, dirID uint64, name string, attr Attr) (*Inode, error) {
	return fs.NS.Create(ctx, dirID, name, attr)
}

func (fs *Filesystem) Mkdir(ctx context.Context, dirID uint64, name string, attr Attr) (*Inode, error) {
	return fs.NS.Mkdir(ctx, dirID, name, attr)
}

func (fs *Filesystem) Symlink(ctx context.Context, dirID uint64, name, target string, attr Attr) (*Inode, error) {
	return fs.NS.Symlink(ctx, dirID, name, target, attr)
}

func (fs *Filesystem) Readlink(ctx context.Context, id uint64) (string, error) {
	return fs.NS.Readlink(ctx, id)
}

func (fs *Filesystem) Remove(ctx context.Context, dirID uint64, name string) error {
	child, err := fs.NS.Remove(ctx, dirID, name)
	if err != nil {
		return err
	}
	return fs.Content.DeleteFile(ctx, child.ID)
}

func (fs *Filesystem) Rmdir(ctx context.Context, dirID uint64, name string) error {
	return fs.NS.Rmdir(ctx, dirID, name)
}

func (fs *Filesystem) Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string) error {
	return fs.NS.Rename(ctx, fromDir, fromName, toDir, toName)
}

func (fs *Filesystem) Readdir(ctx context.Context, dirID uint64, cookie uint64, maxEntries int) (*ReadDirPage, error) {
	return fs.NS.Readdir(ctx, dirID, cookie, maxEntries)
}

func (fs *Filesystem) Lookup(ctx context.Context, dirID uint64, name string) (*Inode, error) {
	return fs.NS.Lookup(ctx, dirID, name)
}

func (fs *Filesystem) Getattr(ctx context.Context, id uint64) (*Inode, error) {
	return fs.NS.Getattr(ctx, id)
}

func (fs *Filesystem) Setattr(ctx context.Context, id uint64, set SetAttr) (*Inode, error) {
	return fs.NS.Setattr(ctx, id, set)
}

// Capabilities reports static FSINFO/PATHCONF facts.
func (fs *Filesystem) Capabilities() FilesystemCapabilities {
	return FilesystemCapabilities{
		MaxFileSize:    1 << 40,
		MaxRead:        1 << 20,
		MaxWrite:       1 << 20,
		MaxName:        255,
		LinkSupport:    false,
		SymlinkSupport: true,
	}
}

// Close drains the Channel Buffer and, if present, seals the current
// audit window so no event from this process's lifetime is left
// uncommitted.
func (fs *Filesystem) Close(ctx context.Context) error {
	if err := fs.Buffer.Close(ctx); err != nil {
		return err
	}
	if fs.Audit != nil {
		return fs.Audit.Seal(ctx)
	}
	return nil
}
