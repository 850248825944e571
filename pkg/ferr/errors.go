// Package ferr defines the abstract error taxonomy shared by every
// subsystem (Backing Store, SSC, Channel Buffer, SBFS, TWMA). Protocol
// handlers translate an ErrorCode to an NFSv3 status at the boundary;
// nothing below the handler layer knows about NFS status codes.
package ferr

import "fmt"

// ErrorCode is the abstract error category, independent of any wire
// protocol. internal/nfs/v3/status.go holds the NFSv3 mapping.
type ErrorCode int

const (
	NotFound ErrorCode = iota
	Exists
	NotDir
	IsDir
	NotEmpty
	InvalidArgument
	PermissionDenied
	IOError
	NotSupported
	TemporarilyUnavailable
	InsufficientShares
	MalformedShares
	CorruptShares
)

func (c ErrorCode) String() string {
	switch c {
	case NotFound:
		return "not_found"
	case Exists:
		return "exists"
	case NotDir:
		return "not_dir"
	case IsDir:
		return "is_dir"
	case NotEmpty:
		return "not_empty"
	case InvalidArgument:
		return "invalid_argument"
	case PermissionDenied:
		return "permission_denied"
	case IOError:
		return "io_error"
	case NotSupported:
		return "not_supported"
	case TemporarilyUnavailable:
		return "temporarily_unavailable"
	case InsufficientShares:
		return "insufficient_shares"
	case MalformedShares:
		return "malformed_shares"
	case CorruptShares:
		return "corrupt_shares"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried across package boundaries.
type Error struct {
	Code    ErrorCode
	Message string
	Path    string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Message, e.Path, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a bare Error with no path or wrapped cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error that carries an underlying cause, used when a
// Backing Store or codec failure is reclassified into the taxonomy.
func Wrap(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithPath attaches a path to an existing Error, copy-on-write so
// callers can't mutate a shared sentinel.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// CodeOf extracts the ErrorCode from err, defaulting to IOError for
// errors that did not originate from this package (e.g. a context
// deadline, or an un-reclassified driver error).
func CodeOf(err error) ErrorCode {
	var fe *Error
	if asFerr(err, &fe) {
		return fe.Code
	}
	return IOError
}

func asFerr(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
