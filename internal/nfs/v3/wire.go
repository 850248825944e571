package v3

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/shamirnfs/shamirnfs/internal/nfs/xdr"
)

// Procedure numbers, RFC 1813 section 3.3.
const (
	ProcNull        = 0
	ProcGetAttr     = 1
	ProcSetAttr     = 2
	ProcLookup      = 3
	ProcAccess      = 4
	ProcReadlink    = 5
	ProcRead        = 6
	ProcWrite       = 7
	ProcCreate      = 8
	ProcMkdir       = 9
	ProcSymlink     = 10
	ProcRemove      = 12
	ProcRmdir       = 13
	ProcRename      = 14
	ProcLink        = 15
	ProcReaddir     = 16
	ProcReaddirplus = 17
	ProcFsstat      = 18
	ProcFsinfo      = 19
	ProcPathconf    = 20
	ProcCommit      = 21
)

// Program is the NFS program number (RFC 1813).
const Program = 100003

// SupportedVersion is the only NFS version this server speaks.
const SupportedVersion = 3

func decodeHandle(r *xdr.Reader) (FileHandle, error) {
	opaque, err := r.Opaque()
	if err != nil {
		return 0, err
	}
	if len(opaque) != 8 {
		return 0, fmt.Errorf("v3: file handle must be 8 bytes, got %d", len(opaque))
	}
	return FileHandle(binary.BigEndian.Uint64(opaque)), nil
}

func encodeHandle(w *xdr.Writer, fh FileHandle) error {
	return w.Opaque(handleBytes(fh))
}

func handleBytes(fh FileHandle) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(fh))
	return buf
}

// HandleBytes returns the raw 8-byte wire encoding of fh, for
// constructing the MOUNT protocol's root file handle outside this
// package.
func HandleBytes(fh FileHandle) []byte {
	return handleBytes(fh)
}

func encodeAttr(w *xdr.Writer, a FileAttr) error {
	_ = w.Uint32(a.Type)
	_ = w.Uint32(a.Mode)
	_ = w.Uint32(a.NLink)
	_ = w.Uint32(a.UID)
	_ = w.Uint32(a.GID)
	_ = w.Uint64(a.Size)
	_ = w.Uint64(a.Used)
	_ = w.Uint64(uint64(a.Atime.Unix()))
	_ = w.Uint64(uint64(a.Mtime.Unix()))
	_ = w.Uint64(uint64(a.Ctime.Unix()))
	return w.Uint64(a.FileID)
}

// Dispatch decodes one NFSv3 call body from r, invokes the matching
// Handler method, and writes the encoded result (beginning with the
// nfsstat3 status word) to w.
func (h *Handler) Dispatch(ctx context.Context, proc uint32, r *xdr.Reader, w *xdr.Writer) error {
	switch proc {
	case ProcNull:
		return h.Null(ctx)

	case ProcGetAttr:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		res := h.GetAttr(ctx, fh)
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			return encodeAttr(w, res.Attr)
		}
		return nil

	case ProcLookup:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		name, err := r.String()
		if err != nil {
			return err
		}
		res := h.Lookup(ctx, LookupArgs{Dir: dir, Name: name})
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			if err := encodeHandle(w, res.Handle); err != nil {
				return err
			}
			return encodeAttr(w, res.Attr)
		}
		return nil

	case ProcAccess:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		wanted, err := r.Uint32()
		if err != nil {
			return err
		}
		res := h.Access(ctx, AccessArgs{Handle: fh, Wanted: wanted})
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			return w.Uint32(res.Granted)
		}
		return nil

	case ProcReadlink:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		res := h.Readlink(ctx, fh)
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			return w.String(res.Target)
		}
		return nil

	case ProcRead:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		offset, err := r.Uint64()
		if err != nil {
			return err
		}
		count, err := r.Uint32()
		if err != nil {
			return err
		}
		res := h.Read(ctx, ReadArgs{Handle: fh, Offset: int64(offset), Count: int(count)})
		_ = w.Uint32(uint32(res.Status))
		if res.Status != StatusOK {
			return nil
		}
		_ = w.Bool(res.EOF)
		return w.Opaque(res.Data)

	case ProcWrite:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		offset, err := r.Uint64()
		if err != nil {
			return err
		}
		if _, err := r.Uint32(); err != nil { // count (redundant with opaque length)
			return err
		}
		stable, err := r.Uint32()
		if err != nil {
			return err
		}
		data, err := r.Opaque()
		if err != nil {
			return err
		}
		res := h.Write(ctx, WriteArgs{Handle: fh, Offset: int64(offset), Data: data, Stable: StableHow(stable)})
		_ = w.Uint32(uint32(res.Status))
		if res.Status != StatusOK {
			return nil
		}
		_ = w.Uint32(res.Count)
		return w.Uint32(uint32(res.Committed))

	case ProcCreate:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		name, err := r.String()
		if err != nil {
			return err
		}
		mode, err := r.Uint32()
		if err != nil {
			return err
		}
		res := h.Create(ctx, CreateArgs{Dir: dir, Name: name, Mode: mode})
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			if err := encodeHandle(w, res.Handle); err != nil {
				return err
			}
			return encodeAttr(w, res.Attr)
		}
		return nil

	case ProcMkdir:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		name, err := r.String()
		if err != nil {
			return err
		}
		mode, err := r.Uint32()
		if err != nil {
			return err
		}
		res := h.Mkdir(ctx, MkdirArgs{Dir: dir, Name: name, Mode: mode})
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			if err := encodeHandle(w, res.Handle); err != nil {
				return err
			}
			return encodeAttr(w, res.Attr)
		}
		return nil

	case ProcSymlink:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		name, err := r.String()
		if err != nil {
			return err
		}
		target, err := r.String()
		if err != nil {
			return err
		}
		mode, err := r.Uint32()
		if err != nil {
			return err
		}
		res := h.Symlink(ctx, SymlinkArgs{Dir: dir, Name: name, Target: target, Mode: mode})
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			if err := encodeHandle(w, res.Handle); err != nil {
				return err
			}
			return encodeAttr(w, res.Attr)
		}
		return nil

	case ProcRemove:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		name, err := r.String()
		if err != nil {
			return err
		}
		status := h.Remove(ctx, RemoveArgs{Dir: dir, Name: name})
		return w.Uint32(uint32(status))

	case ProcRmdir:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		name, err := r.String()
		if err != nil {
			return err
		}
		status := h.Rmdir(ctx, RmdirArgs{Dir: dir, Name: name})
		return w.Uint32(uint32(status))

	case ProcRename:
		fromDir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		fromName, err := r.String()
		if err != nil {
			return err
		}
		toDir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		toName, err := r.String()
		if err != nil {
			return err
		}
		status := h.Rename(ctx, RenameArgs{FromDir: fromDir, FromName: fromName, ToDir: toDir, ToName: toName})
		return w.Uint32(uint32(status))

	case ProcLink:
		return w.Uint32(uint32(h.Link(ctx)))

	case ProcReaddir:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		cookie, err := r.Uint64()
		if err != nil {
			return err
		}
		if _, err := r.Uint64(); err != nil { // cookieverf, unused (no server restart invalidation scheme)
			return err
		}
		count, err := r.Uint32()
		if err != nil {
			return err
		}
		res := h.Readdir(ctx, ReaddirArgs{Dir: dir, Cookie: cookie, MaxEntries: int(count)})
		_ = w.Uint32(uint32(res.Status))
		if res.Status != StatusOK {
			return nil
		}
		_ = w.Uint64(0) // cookieverf
		for _, e := range res.Entries {
			_ = w.Bool(true) // value follows
			_ = w.Uint64(e.FileID)
			_ = w.String(e.Name)
			_ = w.Uint64(e.Cookie)
		}
		_ = w.Bool(false) // no more entries follow
		return w.Bool(res.EOF)

	case ProcReaddirplus:
		dir, err := decodeHandle(r)
		if err != nil {
			return err
		}
		cookie, err := r.Uint64()
		if err != nil {
			return err
		}
		if _, err := r.Uint64(); err != nil {
			return err
		}
		if _, err := r.Uint32(); err != nil { // dircount
			return err
		}
		maxcount, err := r.Uint32()
		if err != nil {
			return err
		}
		res := h.Readdirplus(ctx, ReaddirArgs{Dir: dir, Cookie: cookie, MaxEntries: int(maxcount)})
		_ = w.Uint32(uint32(res.Status))
		if res.Status != StatusOK {
			return nil
		}
		_ = w.Uint64(0)
		for _, e := range res.Entries {
			_ = w.Bool(true)
			_ = w.Uint64(e.Attr.FileID)
			_ = w.String(e.Name)
			_ = w.Uint64(e.Cookie)
			if err := encodeHandle(w, e.Handle); err != nil {
				return err
			}
			if err := encodeAttr(w, e.Attr); err != nil {
				return err
			}
		}
		_ = w.Bool(false)
		return w.Bool(res.EOF)

	case ProcFsstat:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		res := h.Fsstat(ctx, fh)
		_ = w.Uint32(uint32(res.Status))
		if res.Status != StatusOK {
			return nil
		}
		_ = w.Uint64(res.TotalBytes)
		_ = w.Uint64(res.FreeBytes)
		_ = w.Uint64(res.FreeBytes)
		_ = w.Uint64(res.TotalFiles)
		_ = w.Uint64(res.FreeFiles)
		_ = w.Uint64(res.FreeFiles)
		return w.Uint32(0) // invarsec: stats never stale

	case ProcFsinfo:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		res := h.Fsinfo(ctx, fh)
		_ = w.Uint32(uint32(res.Status))
		if res.Status != StatusOK {
			return nil
		}
		_ = w.Uint32(res.MaxRead)
		_ = w.Uint32(res.MaxRead)
		_ = w.Uint32(1)
		_ = w.Uint32(res.MaxWrite)
		_ = w.Uint32(res.MaxWrite)
		_ = w.Uint32(1)
		_ = w.Uint32(4096) // dtpref
		_ = w.Uint64(res.MaxFileSize)
		_ = w.Uint64(1) // time_delta seconds
		_ = w.Uint32(0)
		return w.Uint32(0x0002 | 0x0008) // FSF3_LINK off, FSF3_SYMLINK | FSF3_HOMOGENEOUS

	case ProcPathconf:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		res := h.Pathconf(ctx, fh)
		_ = w.Uint32(uint32(res.Status))
		if res.Status != StatusOK {
			return nil
		}
		_ = w.Uint32(res.LinkMax)
		_ = w.Uint32(res.MaxName)
		_ = w.Bool(true) // no_trunc
		_ = w.Bool(false)
		_ = w.Bool(res.CaseInsen)
		return w.Bool(true) // case_preserving

	case ProcCommit:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		if _, err := r.Uint64(); err != nil { // offset, ignored: Commit flushes the whole file
			return err
		}
		if _, err := r.Uint32(); err != nil { // count, ignored
			return err
		}
		status := h.Commit(ctx, fh)
		_ = w.Uint32(uint32(status))
		if status != StatusOK {
			return nil
		}
		return w.Uint64(0) // writeverf: process-lifetime constant, always 0 (single-process server)

	case ProcSetAttr:
		fh, err := decodeHandle(r)
		if err != nil {
			return err
		}
		args := SetAttrArgs{Handle: fh}
		if setMode, err := r.Bool(); err != nil {
			return err
		} else if setMode {
			v, err := r.Uint32()
			if err != nil {
				return err
			}
			args.Mode = &v
		}
		if setUID, err := r.Bool(); err != nil {
			return err
		} else if setUID {
			v, err := r.Uint32()
			if err != nil {
				return err
			}
			args.UID = &v
		}
		if setGID, err := r.Bool(); err != nil {
			return err
		} else if setGID {
			v, err := r.Uint32()
			if err != nil {
				return err
			}
			args.GID = &v
		}
		if setSize, err := r.Bool(); err != nil {
			return err
		} else if setSize {
			v, err := r.Uint64()
			if err != nil {
				return err
			}
			args.Size = &v
		}
		res := h.SetAttr(ctx, args)
		_ = w.Uint32(uint32(res.Status))
		if res.Status == StatusOK {
			return encodeAttr(w, res.Attr)
		}
		return nil

	default:
		return fmt.Errorf("v3: unknown procedure %d", proc)
	}
}
