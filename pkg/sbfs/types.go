// Package sbfs implements the Share-Based Filesystem: the namespace
// and file-content layer NFSv3 handlers call into. It composes the
// Backing Store (pkg/backingstore), Channel Buffer
// (pkg/channelbuffer), Secret-Sharing Codec (pkg/ssc), and the audit
// log (pkg/audit).
//
// The namespace/inode split is generalized from a multi-protocol
// ACL/lock/share model down to SBFS's needs: one namespace root per
// server, no SMB ACLs, and no byte-range locks, so those concerns are
// dropped rather than adapted (see DESIGN.md).
package sbfs

import "time"

// FileType distinguishes the inode kinds SBFS supports. Device/FIFO/
// socket special files are out of scope.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
)

// Attr is the POSIX-ish attribute set NFSv3 GETATTR/SETATTR exchange.
type Attr struct {
	Type     FileType
	Mode     uint32
	UID      uint32
	GID      uint32
	Size     uint64
	Atime    time.Time
	Mtime    time.Time
	Ctime    time.Time
	NLink    uint32
}

// SetAttr carries only the fields a SETATTR call wants to change; a
// nil pointer field means "leave unchanged".
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime *time.Time
	Mtime *time.Time
}

// Inode is the persisted metadata record for one filesystem object.
// The content of a regular file is NOT stored here -- it lives in
// chunk shares keyed by ID, written/read through pkg/channelbuffer and
// pkg/ssc (see content.go).
type Inode struct {
	ID         uint64   `json:"id"`
	ParentID   uint64   `json:"parent_id"`
	Name       string   `json:"name"`
	Attr       Attr     `json:"attr"`
	LinkTarget string   `json:"link_target,omitempty"` // symlinks only, stored in plaintext
}

// DirEntry is one entry returned from Readdir.
type DirEntry struct {
	Name   string
	FileID uint64
	Cookie uint64
}

// ReadDirPage is a page of directory entries plus the cookie to resume
// from.
type ReadDirPage struct {
	Entries []DirEntry
	EOF     bool
}

// FilesystemStatistics answers NFSv3 FSSTAT.
type FilesystemStatistics struct {
	TotalBytes uint64
	FreeBytes  uint64
	TotalFiles uint64
	FreeFiles  uint64
}

// FilesystemCapabilities answers NFSv3 FSINFO/PATHCONF.
type FilesystemCapabilities struct {
	MaxFileSize  uint64
	MaxRead      uint32
	MaxWrite     uint32
	MaxName      uint32
	LinkSupport  bool
	SymlinkSupport bool
}
