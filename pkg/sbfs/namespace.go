package sbfs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/ferr"
)

// RootInodeID is the well-known ID of a namespace's root directory.
const RootInodeID uint64 = 1

// Namespace is the Namespace Index: the directory graph and per-inode
// attribute store, independent of file content (see Content).
type Namespace struct {
	store backingstore.Store
	alloc backingstore.Allocator
	root  string
}

func inodeKey(root string, id uint64) string { return fmt.Sprintf("ns:%s/inodes/%d", root, id) }
func dirNamesKey(root string, id uint64) string { return fmt.Sprintf("ns:%s/dir/%d/names", root, id) }
func dirOrderKey(root string, id uint64) string { return fmt.Sprintf("ns:%s/dir/%d/order", root, id) }
func pathsKey(root string) string               { return fmt.Sprintf("ns:%s/paths", root) }
func nextIDKey(root string) string              { return fmt.Sprintf("ns:%s/next_id", root) }

// OpenNamespace loads (creating if absent) the namespace rooted at
// root, a string derived from the namespace_root_hash embedded in
// NFSv3 file handles.
func OpenNamespace(ctx context.Context, store backingstore.Store, alloc backingstore.Allocator, root string) (*Namespace, error) {
	ns := &Namespace{store: store, alloc: alloc, root: root}

	_, ok, err := store.Get(ctx, inodeKey(root, RootInodeID))
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "load root inode", err)
	}
	if !ok {
		now := time.Now()
		rootInode := &Inode{
			ID:       RootInodeID,
			ParentID: RootInodeID,
			Name:     "/",
			Attr: Attr{
				Type:  TypeDirectory,
				Mode:  0o755,
				NLink: 2,
				Atime: now,
				Mtime: now,
				Ctime: now,
			},
		}
		if err := ns.putInode(ctx, rootInode); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

func (n *Namespace) getInode(ctx context.Context, id uint64) (*Inode, error) {
	raw, ok, err := n.store.Get(ctx, inodeKey(n.root, id))
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "get inode", err)
	}
	if !ok {
		return nil, ferr.New(ferr.NotFound, "inode not found")
	}
	var inode Inode
	if err := json.Unmarshal(raw, &inode); err != nil {
		return nil, ferr.Wrap(ferr.CorruptShares, "decode inode", err)
	}
	return &inode, nil
}

func (n *Namespace) putInode(ctx context.Context, inode *Inode) error {
	raw, err := json.Marshal(inode)
	if err != nil {
		return ferr.Wrap(ferr.IOError, "encode inode", err)
	}
	if err := n.store.Put(ctx, inodeKey(n.root, inode.ID), raw); err != nil {
		return ferr.Wrap(ferr.IOError, "put inode", err)
	}
	return nil
}

// Getattr returns dirID's or fileID's current attributes.
func (n *Namespace) Getattr(ctx context.Context, id uint64) (*Inode, error) {
	return n.getInode(ctx, id)
}

// PathFor reconstructs id's absolute path from the export root by
// walking ParentID links up to RootInodeID.
func (n *Namespace) PathFor(ctx context.Context, id uint64) (string, error) {
	if id == RootInodeID {
		return "/", nil
	}

	var parts []string
	for id != RootInodeID {
		inode, err := n.getInode(ctx, id)
		if err != nil {
			return "", err
		}
		parts = append(parts, inode.Name)
		id = inode.ParentID
	}

	path := ""
	for i := len(parts) - 1; i >= 0; i-- {
		path += "/" + parts[i]
	}
	return path, nil
}

// Setattr applies a partial attribute update.
func (n *Namespace) Setattr(ctx context.Context, id uint64, set SetAttr) (*Inode, error) {
	inode, err := n.getInode(ctx, id)
	if err != nil {
		return nil, err
	}
	if set.Mode != nil {
		inode.Attr.Mode = *set.Mode
	}
	if set.UID != nil {
		inode.Attr.UID = *set.UID
	}
	if set.GID != nil {
		inode.Attr.GID = *set.GID
	}
	if set.Size != nil {
		inode.Attr.Size = *set.Size
	}
	if set.Atime != nil {
		inode.Attr.Atime = *set.Atime
	}
	if set.Mtime != nil {
		inode.Attr.Mtime = *set.Mtime
	}
	inode.Attr.Ctime = time.Now()
	if err := n.putInode(ctx, inode); err != nil {
		return nil, err
	}
	return inode, nil
}

// Lookup resolves name within directory dirID.
func (n *Namespace) Lookup(ctx context.Context, dirID uint64, name string) (*Inode, error) {
	parent, err := n.getInode(ctx, dirID)
	if err != nil {
		return nil, err
	}
	if parent.Attr.Type != TypeDirectory {
		return nil, ferr.New(ferr.NotDir, "lookup parent is not a directory")
	}

	raw, ok, err := n.store.HGet(ctx, dirNamesKey(n.root, dirID), name)
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "lookup directory entry", err)
	}
	if !ok {
		return nil, ferr.New(ferr.NotFound, "no such file or directory").WithPath(name)
	}
	childID, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return nil, ferr.Wrap(ferr.CorruptShares, "decode directory entry", err)
	}
	return n.getInode(ctx, childID)
}

func (n *Namespace) link(ctx context.Context, dirID uint64, name string, child *Inode) error {
	existing, ok, err := n.store.HGet(ctx, dirNamesKey(n.root, dirID), name)
	if err != nil {
		return ferr.Wrap(ferr.IOError, "check existing directory entry", err)
	}
	if ok {
		_ = existing
		return ferr.New(ferr.Exists, "name already exists").WithPath(name)
	}

	idStr := strconv.FormatUint(child.ID, 10)
	batch := []backingstore.Write{
		{Op: backingstore.OpHSet, Key: dirNamesKey(n.root, dirID), Field: name, Value: []byte(idStr)},
		{Op: backingstore.OpZAdd, Key: dirOrderKey(n.root, dirID), Member: idStr, Score: float64(child.ID)},
		{Op: backingstore.OpHSet, Key: pathsKey(n.root), Field: fmt.Sprintf("%d/%s", dirID, name), Value: []byte(idStr)},
	}
	if err := n.store.ExecAtomic(ctx, batch); err != nil {
		return ferr.Wrap(ferr.IOError, "link directory entry", err)
	}
	return nil
}

func (n *Namespace) unlink(ctx context.Context, dirID uint64, name string, childID uint64) error {
	idStr := strconv.FormatUint(childID, 10)
	batch := []backingstore.Write{
		{Op: backingstore.OpHDel, Key: dirNamesKey(n.root, dirID), Field: name},
		{Op: backingstore.OpZRem, Key: dirOrderKey(n.root, dirID), Member: idStr, Score: float64(childID)},
		{Op: backingstore.OpHDel, Key: pathsKey(n.root), Field: fmt.Sprintf("%d/%s", dirID, name)},
	}
	if err := n.store.ExecAtomic(ctx, batch); err != nil {
		return ferr.Wrap(ferr.IOError, "unlink directory entry", err)
	}
	return nil
}

func (n *Namespace) allocID(ctx context.Context) (uint64, error) {
	id, err := n.alloc.NextID(ctx, nextIDKey(n.root))
	if err != nil {
		return 0, ferr.Wrap(ferr.IOError, "allocate inode id", err)
	}
	// ID 1 is reserved for the namespace root; NextID starts counting
	// from 1 too, so shift every allocation up by one.
	return id + 1, nil
}

func (n *Namespace) create(ctx context.Context, dirID uint64, name string, typ FileType, attr Attr, linkTarget string) (*Inode, error) {
	parent, err := n.getInode(ctx, dirID)
	if err != nil {
		return nil, err
	}
	if parent.Attr.Type != TypeDirectory {
		return nil, ferr.New(ferr.NotDir, "parent is not a directory")
	}

	id, err := n.allocID(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	attr.Type = typ
	attr.Atime, attr.Mtime, attr.Ctime = now, now, now
	if typ == TypeDirectory {
		attr.NLink = 2
	} else {
		attr.NLink = 1
	}

	child := &Inode{
		ID:         id,
		ParentID:   dirID,
		Name:       name,
		Attr:       attr,
		LinkTarget: linkTarget,
	}
	if err := n.putInode(ctx, child); err != nil {
		return nil, err
	}
	if err := n.link(ctx, dirID, name, child); err != nil {
		return nil, err
	}
	return child, nil
}

// Create makes a new regular file.
func (n *Namespace) Create(ctx context.Context, dirID uint64, name string, attr Attr) (*Inode, error) {
	return n.create(ctx, dirID, name, TypeRegular, attr, "")
}

// Mkdir makes a new, empty directory.
func (n *Namespace) Mkdir(ctx context.Context, dirID uint64, name string, attr Attr) (*Inode, error) {
	return n.create(ctx, dirID, name, TypeDirectory, attr, "")
}

// Symlink creates a symbolic link whose target is stored in plaintext:
// symlink targets are not Shamir-split -- they carry no confidential
// file content, only a
// path string, and splitting them would complicate READLINK for no
// secrecy benefit).
func (n *Namespace) Symlink(ctx context.Context, dirID uint64, name, target string, attr Attr) (*Inode, error) {
	return n.create(ctx, dirID, name, TypeSymlink, attr, target)
}

// Readlink returns a symlink's target.
func (n *Namespace) Readlink(ctx context.Context, id uint64) (string, error) {
	inode, err := n.getInode(ctx, id)
	if err != nil {
		return "", err
	}
	if inode.Attr.Type != TypeSymlink {
		return "", ferr.New(ferr.InvalidArgument, "not a symlink")
	}
	return inode.LinkTarget, nil
}

// Remove deletes a non-directory entry and returns its former inode
// (the caller, typically pkg/sbfs.Filesystem, is responsible for
// reclaiming its content shares).
func (n *Namespace) Remove(ctx context.Context, dirID uint64, name string) (*Inode, error) {
	child, err := n.Lookup(ctx, dirID, name)
	if err != nil {
		return nil, err
	}
	if child.Attr.Type == TypeDirectory {
		return nil, ferr.New(ferr.IsDir, "cannot remove a directory with REMOVE").WithPath(name)
	}
	if err := n.unlink(ctx, dirID, name, child.ID); err != nil {
		return nil, err
	}
	if err := n.store.Delete(ctx, inodeKey(n.root, child.ID)); err != nil {
		return nil, ferr.Wrap(ferr.IOError, "delete inode record", err)
	}
	return child, nil
}

// Rmdir removes an empty directory.
func (n *Namespace) Rmdir(ctx context.Context, dirID uint64, name string) error {
	child, err := n.Lookup(ctx, dirID, name)
	if err != nil {
		return err
	}
	if child.Attr.Type != TypeDirectory {
		return ferr.New(ferr.NotDir, "not a directory").WithPath(name)
	}
	entries, err := n.store.HGetAll(ctx, dirNamesKey(n.root, child.ID))
	if err != nil {
		return ferr.Wrap(ferr.IOError, "list directory for rmdir", err)
	}
	if len(entries) > 0 {
		return ferr.New(ferr.NotEmpty, "directory not empty").WithPath(name)
	}
	if err := n.unlink(ctx, dirID, name, child.ID); err != nil {
		return err
	}
	return n.store.Delete(ctx, inodeKey(n.root, child.ID))
}

// Rename moves/renames a file or directory, overwriting an existing
// non-directory target if present. Renaming over an existing
// non-empty directory is rejected.
func (n *Namespace) Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string) error {
	src, err := n.Lookup(ctx, fromDir, fromName)
	if err != nil {
		return err
	}

	target, err := n.Lookup(ctx, toDir, toName)
	if err != nil && ferr.CodeOf(err) != ferr.NotFound {
		return err
	}
	if err == nil {
		if target.Attr.Type == TypeDirectory {
			entries, err := n.store.HGetAll(ctx, dirNamesKey(n.root, target.ID))
			if err != nil {
				return ferr.Wrap(ferr.IOError, "list target directory for rename", err)
			}
			if len(entries) > 0 {
				return ferr.New(ferr.NotEmpty, "rename target directory not empty").WithPath(toName)
			}
			if err := n.unlink(ctx, toDir, toName, target.ID); err != nil {
				return err
			}
			if err := n.store.Delete(ctx, inodeKey(n.root, target.ID)); err != nil {
				return ferr.Wrap(ferr.IOError, "delete overwritten target directory", err)
			}
		} else {
			if err := n.unlink(ctx, toDir, toName, target.ID); err != nil {
				return err
			}
			if err := n.store.Delete(ctx, inodeKey(n.root, target.ID)); err != nil {
				return ferr.Wrap(ferr.IOError, "delete overwritten target file", err)
			}
		}
	}

	if err := n.unlink(ctx, fromDir, fromName, src.ID); err != nil {
		return err
	}
	src.ParentID = toDir
	src.Name = toName
	if err := n.putInode(ctx, src); err != nil {
		return err
	}
	return n.link(ctx, toDir, toName, src)
}

// Readdir lists dirID's entries in ascending inode-ID order, starting
// strictly after cookie (0 lists from the beginning).
func (n *Namespace) Readdir(ctx context.Context, dirID uint64, cookie uint64, maxEntries int) (*ReadDirPage, error) {
	dir, err := n.getInode(ctx, dirID)
	if err != nil {
		return nil, err
	}
	if dir.Attr.Type != TypeDirectory {
		return nil, ferr.New(ferr.NotDir, "not a directory")
	}

	ids, err := n.store.ZRangeByScore(ctx, dirOrderKey(n.root, dirID), float64(cookie)+1, float64(^uint64(0)>>1))
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "range directory entries", err)
	}

	names, err := n.store.HGetAll(ctx, dirNamesKey(n.root, dirID))
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "load directory names", err)
	}
	idToName := make(map[string]string, len(names))
	for name, idBytes := range names {
		idToName[string(idBytes)] = name
	}

	page := &ReadDirPage{EOF: true}
	for i, idStr := range ids {
		if maxEntries > 0 && i >= maxEntries {
			page.EOF = false
			break
		}
		childID, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		page.Entries = append(page.Entries, DirEntry{
			Name:   idToName[idStr],
			FileID: childID,
			Cookie: childID,
		})
	}
	return page, nil
}

// Stat reports coarse filesystem-wide statistics. Free space/inode
// counts are deployment-configured rather than derived from the
// Backing Store (which, for an embedded BadgerDB or a Redis Cluster,
// has no single authoritative "bytes free" figure SBFS can cheaply
// query); the caller passes them in.
func (n *Namespace) Stat(ctx context.Context, totalBytes, freeBytes, totalFiles, freeFiles uint64) FilesystemStatistics {
	return FilesystemStatistics{
		TotalBytes: totalBytes,
		FreeBytes:  freeBytes,
		TotalFiles: totalFiles,
		FreeFiles:  freeFiles,
	}
}
