// Package rpc implements the ONC RPC (RFC 1057) record-marking and
// Call/Reply header framing that both the NFSv3 and MOUNT protocols
// ride on top of. Argument/result bodies past the header are left to
// the procedure-specific handler packages: this package owns the
// transport envelope only, treating the wire decoder as an opaque-call
// boundary the handlers sit behind.
package rpc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shamirnfs/shamirnfs/internal/nfs/xdr"
)

const (
	lastFragmentBit = 1 << 31
	maxFragmentSize = 1 << 22 // 4 MiB, generous relative to NFSv3 MaxWrite

	// Reply/accept/verifier status constants (RFC 1057 section 9).
	MsgTypeCall  = 0
	MsgTypeReply = 1

	ReplyAccepted = 0
	ReplyDenied   = 1

	AcceptSuccess      = 0
	AcceptProgUnavail  = 1
	AcceptProgMismatch = 2
	AcceptProcUnavail  = 3
	AcceptGarbageArgs  = 4
	AcceptSystemErr    = 5

	AuthFlavorNone = 0
	AuthFlavorSys  = 1
)

// CallHeader is the RPC call header common to every NFSv3/MOUNT
// procedure invocation, decoded ahead of the procedure-specific
// argument body.
type CallHeader struct {
	Xid         uint32
	Program     uint32
	Version     uint32
	Procedure   uint32
	CredFlavor  uint32
	CredBody    []byte
	VerifFlavor uint32
	VerifBody   []byte
}

// ReadCall reads one complete RPC call record (reassembling fragments
// per the record-marking standard) and decodes its header, returning a
// reader positioned at the start of the procedure argument body.
func ReadCall(r *bufio.Reader) (*CallHeader, *xdr.Reader, error) {
	body, err := readRecord(r)
	if err != nil {
		return nil, nil, err
	}
	xr := xdr.NewReader(bytes.NewReader(body))

	xid, err := xr.Uint32()
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read xid: %w", err)
	}
	msgType, err := xr.Uint32()
	if err != nil {
		return nil, nil, err
	}
	if msgType != MsgTypeCall {
		return nil, nil, fmt.Errorf("rpc: expected CALL message, got type %d", msgType)
	}

	rpcvers, err := xr.Uint32()
	if err != nil {
		return nil, nil, err
	}
	if rpcvers != 2 {
		return nil, nil, fmt.Errorf("rpc: unsupported rpc version %d", rpcvers)
	}

	h := &CallHeader{Xid: xid}
	if h.Program, err = xr.Uint32(); err != nil {
		return nil, nil, err
	}
	if h.Version, err = xr.Uint32(); err != nil {
		return nil, nil, err
	}
	if h.Procedure, err = xr.Uint32(); err != nil {
		return nil, nil, err
	}
	if h.CredFlavor, err = xr.Uint32(); err != nil {
		return nil, nil, err
	}
	if h.CredBody, err = xr.Opaque(); err != nil {
		return nil, nil, err
	}
	if h.VerifFlavor, err = xr.Uint32(); err != nil {
		return nil, nil, err
	}
	if h.VerifBody, err = xr.Opaque(); err != nil {
		return nil, nil, err
	}

	return h, xr, nil
}

// WriteAcceptedReply writes a successful RPC reply header followed by
// body (the already-encoded procedure result), framed as a single
// last-fragment record.
func WriteAcceptedReply(w io.Writer, xid uint32, body []byte) error {
	var buf bytes.Buffer
	xw := xdr.NewWriter(&buf)

	_ = xw.Uint32(xid)
	_ = xw.Uint32(MsgTypeReply)
	_ = xw.Uint32(ReplyAccepted)
	_ = xw.Uint32(AuthFlavorNone)
	_ = xw.Opaque(nil)
	_ = xw.Uint32(AcceptSuccess)
	buf.Write(body)

	return writeRecord(w, buf.Bytes())
}

// WriteErrorReply writes an RPC reply carrying an accept-status other
// than success (PROG_UNAVAIL, PROC_UNAVAIL, GARBAGE_ARGS, ...), used
// when the dispatcher cannot even reach a procedure-level NFS status.
func WriteErrorReply(w io.Writer, xid uint32, acceptStatus uint32) error {
	var buf bytes.Buffer
	xw := xdr.NewWriter(&buf)

	_ = xw.Uint32(xid)
	_ = xw.Uint32(MsgTypeReply)
	_ = xw.Uint32(ReplyAccepted)
	_ = xw.Uint32(AuthFlavorNone)
	_ = xw.Opaque(nil)
	_ = xw.Uint32(acceptStatus)

	return writeRecord(w, buf.Bytes())
}

func readRecord(r *bufio.Reader) ([]byte, error) {
	var record []byte
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		marker := binary.BigEndian.Uint32(header[:])
		last := marker&lastFragmentBit != 0
		size := marker &^ lastFragmentBit
		if size > maxFragmentSize {
			return nil, fmt.Errorf("rpc: fragment size %d exceeds maximum %d", size, maxFragmentSize)
		}

		frag := make([]byte, size)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, fmt.Errorf("rpc: read fragment: %w", err)
		}
		record = append(record, frag...)

		if last {
			return record, nil
		}
	}
}

func writeRecord(w io.Writer, body []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], lastFragmentBit|uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
