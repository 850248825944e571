package v3

import (
	"context"
	"time"

	"github.com/shamirnfs/shamirnfs/pkg/sbfs"
)

// FileHandle is the NFSv3 fhandle3 this server hands out: just the
// SBFS inode ID, since there is one namespace root per server and no
// generation-number reuse to guard against (IDs are never recycled --
// see pkg/backingstore.Allocator).
type FileHandle uint64

// FileAttr is the wire-shaped subset of sbfs.Attr returned by GETATTR
// and embedded in many other replies (NFSv3 fattr3).
type FileAttr struct {
	Type  uint32
	Mode  uint32
	NLink uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Used  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	FileID uint64
}

// ftype3Of maps sbfs.FileType to the NFSv3 ftype3 wire values
// (RFC 1813 section 2.6: NF3REG=1, NF3DIR=2, NF3LNK=5).
func ftype3Of(t sbfs.FileType) uint32 {
	switch t {
	case sbfs.TypeDirectory:
		return 2
	case sbfs.TypeSymlink:
		return 5
	default:
		return 1
	}
}

func toFileAttr(inode *sbfs.Inode) FileAttr {
	return FileAttr{
		Type:   ftype3Of(inode.Attr.Type),
		Mode:   inode.Attr.Mode,
		NLink:  inode.Attr.NLink,
		UID:    inode.Attr.UID,
		GID:    inode.Attr.GID,
		Size:   inode.Attr.Size,
		Used:   inode.Attr.Size,
		Atime:  inode.Attr.Atime,
		Mtime:  inode.Attr.Mtime,
		Ctime:  inode.Attr.Ctime,
		FileID: inode.ID,
	}
}

// Handler wraps one *sbfs.Filesystem and implements every NFSv3
// procedure the server advertises, translating ferr.ErrorCode to
// Status at the boundary.
type Handler struct {
	FS *sbfs.Filesystem
}

func New(fs *sbfs.Filesystem) *Handler { return &Handler{FS: fs} }

// Null implements PROC 0: no-op liveness check.
func (h *Handler) Null(ctx context.Context) error { return nil }

type GetAttrResult struct {
	Status Status
	Attr   FileAttr
}

func (h *Handler) GetAttr(ctx context.Context, fh FileHandle) GetAttrResult {
	inode, err := h.FS.Getattr(ctx, uint64(fh))
	if err != nil {
		return GetAttrResult{Status: statusOf(err)}
	}
	return GetAttrResult{Status: StatusOK, Attr: toFileAttr(inode)}
}

type SetAttrArgs struct {
	Handle FileHandle
	Mode   *uint32
	UID    *uint32
	GID    *uint32
	Size   *uint64
	Atime  *time.Time
	Mtime  *time.Time
}

type SetAttrResult struct {
	Status Status
	Attr   FileAttr
}

func (h *Handler) SetAttr(ctx context.Context, args SetAttrArgs) SetAttrResult {
	inode, err := h.FS.Setattr(ctx, uint64(args.Handle), sbfs.SetAttr{
		Mode: args.Mode, UID: args.UID, GID: args.GID,
		Size: args.Size, Atime: args.Atime, Mtime: args.Mtime,
	})
	if err != nil {
		return SetAttrResult{Status: statusOf(err)}
	}
	return SetAttrResult{Status: StatusOK, Attr: toFileAttr(inode)}
}

type LookupArgs struct {
	Dir  FileHandle
	Name string
}

type LookupResult struct {
	Status Status
	Handle FileHandle
	Attr   FileAttr
}

func (h *Handler) Lookup(ctx context.Context, args LookupArgs) LookupResult {
	inode, err := h.FS.Lookup(ctx, uint64(args.Dir), args.Name)
	if err != nil {
		return LookupResult{Status: statusOf(err)}
	}
	return LookupResult{Status: StatusOK, Handle: FileHandle(inode.ID), Attr: toFileAttr(inode)}
}

// Access bits, a subset of RFC 1813 section 3.3.4 relevant without an
// ACL layer: Access grants every requested bit for any existing
// handle, with no mode-bit or ACL check.
const (
	AccessRead    uint32 = 0x0001
	AccessLookup  uint32 = 0x0002
	AccessModify  uint32 = 0x0004
	AccessExtend  uint32 = 0x0008
	AccessDelete  uint32 = 0x0010
	AccessExecute uint32 = 0x0020
)

type AccessArgs struct {
	Handle  FileHandle
	Wanted  uint32
}

type AccessResult struct {
	Status  Status
	Granted uint32
}

func (h *Handler) Access(ctx context.Context, args AccessArgs) AccessResult {
	if _, err := h.FS.Getattr(ctx, uint64(args.Handle)); err != nil {
		return AccessResult{Status: statusOf(err)}
	}
	return AccessResult{Status: StatusOK, Granted: args.Wanted}
}

type ReadlinkResult struct {
	Status Status
	Target string
}

func (h *Handler) Readlink(ctx context.Context, fh FileHandle) ReadlinkResult {
	target, err := h.FS.Readlink(ctx, uint64(fh))
	if err != nil {
		return ReadlinkResult{Status: statusOf(err)}
	}
	return ReadlinkResult{Status: StatusOK, Target: target}
}

type ReadArgs struct {
	Handle FileHandle
	Offset int64
	Count  int
}

type ReadResult struct {
	Status Status
	Data   []byte
	EOF    bool
}

func (h *Handler) Read(ctx context.Context, args ReadArgs) ReadResult {
	data, eof, err := h.FS.Read(ctx, uint64(args.Handle), args.Offset, args.Count)
	if err != nil {
		return ReadResult{Status: statusOf(err)}
	}
	return ReadResult{Status: StatusOK, Data: data, EOF: eof}
}

// StableHow mirrors RFC 1813's stable_how: whether the server must
// flush data to the Backing Store before replying.
type StableHow uint32

const (
	Unstable StableHow = 0
	DataSync StableHow = 1
	FileSync StableHow = 2
)

type WriteArgs struct {
	Handle FileHandle
	Offset int64
	Data   []byte
	Stable StableHow
}

type WriteResult struct {
	Status    Status
	Count     uint32
	Committed StableHow
}

func (h *Handler) Write(ctx context.Context, args WriteArgs) WriteResult {
	n, err := h.FS.Write(ctx, uint64(args.Handle), args.Offset, args.Data)
	if err != nil {
		return WriteResult{Status: statusOf(err)}
	}
	committed := Unstable
	if args.Stable != Unstable {
		if err := h.FS.Commit(ctx, uint64(args.Handle)); err != nil {
			return WriteResult{Status: statusOf(err)}
		}
		committed = args.Stable
	}
	return WriteResult{Status: StatusOK, Count: n, Committed: committed}
}

type CreateArgs struct {
	Dir  FileHandle
	Name string
	Mode uint32
}

type CreateResult struct {
	Status Status
	Handle FileHandle
	Attr   FileAttr
}

func (h *Handler) Create(ctx context.Context, args CreateArgs) CreateResult {
	inode, err := h.FS.Create(ctx, uint64(args.Dir), args.Name, sbfs.Attr{Type: sbfs.TypeRegular, Mode: args.Mode})
	if err != nil {
		return CreateResult{Status: statusOf(err)}
	}
	return CreateResult{Status: StatusOK, Handle: FileHandle(inode.ID), Attr: toFileAttr(inode)}
}

type MkdirArgs struct {
	Dir  FileHandle
	Name string
	Mode uint32
}

type MkdirResult struct {
	Status Status
	Handle FileHandle
	Attr   FileAttr
}

func (h *Handler) Mkdir(ctx context.Context, args MkdirArgs) MkdirResult {
	inode, err := h.FS.Mkdir(ctx, uint64(args.Dir), args.Name, sbfs.Attr{Type: sbfs.TypeDirectory, Mode: args.Mode})
	if err != nil {
		return MkdirResult{Status: statusOf(err)}
	}
	return MkdirResult{Status: StatusOK, Handle: FileHandle(inode.ID), Attr: toFileAttr(inode)}
}

type SymlinkArgs struct {
	Dir    FileHandle
	Name   string
	Target string
	Mode   uint32
}

type SymlinkResult struct {
	Status Status
	Handle FileHandle
	Attr   FileAttr
}

func (h *Handler) Symlink(ctx context.Context, args SymlinkArgs) SymlinkResult {
	inode, err := h.FS.Symlink(ctx, uint64(args.Dir), args.Name, args.Target, sbfs.Attr{Type: sbfs.TypeSymlink, Mode: args.Mode})
	if err != nil {
		return SymlinkResult{Status: statusOf(err)}
	}
	return SymlinkResult{Status: StatusOK, Handle: FileHandle(inode.ID), Attr: toFileAttr(inode)}
}

type RemoveArgs struct {
	Dir  FileHandle
	Name string
}

func (h *Handler) Remove(ctx context.Context, args RemoveArgs) Status {
	return statusOf(h.FS.Remove(ctx, uint64(args.Dir), args.Name))
}

type RmdirArgs struct {
	Dir  FileHandle
	Name string
}

func (h *Handler) Rmdir(ctx context.Context, args RmdirArgs) Status {
	return statusOf(h.FS.Rmdir(ctx, uint64(args.Dir), args.Name))
}

type RenameArgs struct {
	FromDir  FileHandle
	FromName string
	ToDir    FileHandle
	ToName   string
}

func (h *Handler) Rename(ctx context.Context, args RenameArgs) Status {
	return statusOf(h.FS.Rename(ctx, uint64(args.FromDir), args.FromName, uint64(args.ToDir), args.ToName))
}

// Link implements NFSv3 LINK (PROC 15): always unsupported. SBFS's
// namespace entries are owned by a single parent (pkg/sbfs.Inode has
// one ParentID), so hard links -- a second name for the same inode --
// have no representation without reworking the namespace graph into a
// true DAG.
func (h *Handler) Link(ctx context.Context) Status {
	return StatusNotSupp
}

type ReaddirArgs struct {
	Dir        FileHandle
	Cookie     uint64
	MaxEntries int
}

type ReaddirResult struct {
	Status  Status
	Entries []sbfs.DirEntry
	EOF     bool
}

func (h *Handler) Readdir(ctx context.Context, args ReaddirArgs) ReaddirResult {
	page, err := h.FS.Readdir(ctx, uint64(args.Dir), args.Cookie, args.MaxEntries)
	if err != nil {
		return ReaddirResult{Status: statusOf(err)}
	}
	return ReaddirResult{Status: StatusOK, Entries: page.Entries, EOF: page.EOF}
}

// ReaddirplusResult is identical in shape to Readdir's, plus full attrs
// per entry: SBFS's Readdir page carries only name, file ID and cookie,
// so Readdirplus calls Getattr for each entry and skips entries whose
// inode can no longer be loaded.
type ReaddirplusEntry struct {
	Name   string
	Handle FileHandle
	Attr   FileAttr
	Cookie uint64
}

type ReaddirplusResult struct {
	Status  Status
	Entries []ReaddirplusEntry
	EOF     bool
}

func (h *Handler) Readdirplus(ctx context.Context, args ReaddirArgs) ReaddirplusResult {
	page, err := h.FS.Readdir(ctx, uint64(args.Dir), args.Cookie, args.MaxEntries)
	if err != nil {
		return ReaddirplusResult{Status: statusOf(err)}
	}
	entries := make([]ReaddirplusEntry, 0, len(page.Entries))
	for _, e := range page.Entries {
		inode, err := h.FS.Getattr(ctx, e.FileID)
		if err != nil {
			continue
		}
		entries = append(entries, ReaddirplusEntry{
			Name: e.Name, Handle: FileHandle(e.FileID), Attr: toFileAttr(inode), Cookie: e.Cookie,
		})
	}
	return ReaddirplusResult{Status: StatusOK, Entries: entries, EOF: page.EOF}
}

type FsstatResult struct {
	Status     Status
	TotalBytes uint64
	FreeBytes  uint64
	TotalFiles uint64
	FreeFiles  uint64
}

func (h *Handler) Fsstat(ctx context.Context, fh FileHandle) FsstatResult {
	if _, err := h.FS.Getattr(ctx, uint64(fh)); err != nil {
		return FsstatResult{Status: statusOf(err)}
	}
	// SBFS has no fixed capacity ceiling -- the Backing Store grows
	// with however many Shamir shares are written -- so FSSTAT reports
	// the conventional "effectively unbounded" sentinel values rather
	// than deriving a real quota the way a block-device-backed
	// filesystem would.
	const unbounded = ^uint64(0)
	return FsstatResult{Status: StatusOK, TotalBytes: unbounded, FreeBytes: unbounded, TotalFiles: unbounded, FreeFiles: unbounded}
}

type FsinfoResult struct {
	Status Status
	sbfs.FilesystemCapabilities
}

func (h *Handler) Fsinfo(ctx context.Context, fh FileHandle) FsinfoResult {
	if _, err := h.FS.Getattr(ctx, uint64(fh)); err != nil {
		return FsinfoResult{Status: statusOf(err)}
	}
	return FsinfoResult{Status: StatusOK, FilesystemCapabilities: h.FS.Capabilities()}
}

type PathconfResult struct {
	Status    Status
	MaxName   uint32
	LinkMax   uint32
	CaseInsen bool
}

func (h *Handler) Pathconf(ctx context.Context, fh FileHandle) PathconfResult {
	if _, err := h.FS.Getattr(ctx, uint64(fh)); err != nil {
		return PathconfResult{Status: statusOf(err)}
	}
	caps := h.FS.Capabilities()
	return PathconfResult{Status: StatusOK, MaxName: caps.MaxName, LinkMax: 1, CaseInsen: false}
}

func (h *Handler) Commit(ctx context.Context, fh FileHandle) Status {
	return statusOf(h.FS.Commit(ctx, uint64(fh)))
}
