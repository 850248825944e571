// Package v3 implements the NFSv3 (RFC 1813) procedure set against a
// *sbfs.Filesystem. Handlers operate on typed Go request/result structs
// rather than raw XDR; Dispatch in wire.go decodes each procedure's
// arguments and encodes its result using internal/nfs/xdr. Handlers are
// kept in one consolidated file rather than split procedure-by-
// procedure, since SBFS serves a single namespace root with no
// per-share policy branching to justify the split.
package v3

import "github.com/shamirnfs/shamirnfs/pkg/ferr"

// Status is the NFSv3 nfsstat3 enumeration (RFC 1813 section 2.6).
type Status uint32

const (
	StatusOK             Status = 0
	StatusPerm           Status = 1
	StatusNoEnt          Status = 2
	StatusIO             Status = 5
	StatusNXIO           Status = 6
	StatusAcces          Status = 13
	StatusExist          Status = 17
	StatusXDev           Status = 18
	StatusNoDev          Status = 19
	StatusNotDir         Status = 20
	StatusIsDir          Status = 21
	StatusInval          Status = 22
	StatusFBig           Status = 27
	StatusNoSpc          Status = 28
	StatusROFS           Status = 30
	StatusNameTooLong    Status = 63
	StatusNotEmpty       Status = 66
	StatusDQuot          Status = 69
	StatusStale          Status = 70
	StatusRemote         Status = 71
	StatusBadHandle      Status = 10001
	StatusNotSync        Status = 10002
	StatusBadCookie      Status = 10003
	StatusNotSupp        Status = 10004
	StatusTooSmall       Status = 10005
	StatusServerFault    Status = 10006
	StatusBadType        Status = 10007
	StatusJukebox        Status = 10008
)

// statusOf maps the abstract ferr.ErrorCode taxonomy to an NFSv3
// status. This is the one place in the server that knows both
// vocabularies.
func statusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	switch ferr.CodeOf(err) {
	case ferr.NotFound:
		return StatusNoEnt
	case ferr.Exists:
		return StatusExist
	case ferr.NotDir:
		return StatusNotDir
	case ferr.IsDir:
		return StatusIsDir
	case ferr.NotEmpty:
		return StatusNotEmpty
	case ferr.InvalidArgument:
		return StatusInval
	case ferr.PermissionDenied:
		return StatusAcces
	case ferr.NotSupported:
		return StatusNotSupp
	case ferr.TemporarilyUnavailable:
		return StatusJukebox
	case ferr.InsufficientShares, ferr.MalformedShares, ferr.CorruptShares:
		return StatusIO
	case ferr.IOError:
		return StatusIO
	default:
		return StatusServerFault
	}
}
