package nfs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/shamirnfs/shamirnfs/internal/logger"
	"github.com/shamirnfs/shamirnfs/internal/nfs/mount"
	"github.com/shamirnfs/shamirnfs/internal/nfs/rpc"
	v3 "github.com/shamirnfs/shamirnfs/internal/nfs/v3"
	"github.com/shamirnfs/shamirnfs/internal/nfs/xdr"
)

// Mount program number and its sole supported version (RFC 1813
// Appendix I).
const (
	mountProgram = 100005
	mountVersion = 3

	mountProcNull    = 0
	mountProcMnt     = 1
	mountProcDump    = 2
	mountProcUmnt    = 3
	mountProcUmntAll = 4
	mountProcExport  = 5
)

// connection serves RPC calls for one accepted TCP connection,
// dispatching NFSv3 calls to v3.Handler and MOUNT calls to
// mount.Handler until the client disconnects or ctx is cancelled.
type connection struct {
	adapter *Adapter
	conn    net.Conn
	reader  *bufio.Reader
}

func newConnection(a *Adapter, c net.Conn) *connection {
	return &connection{adapter: a, conn: c, reader: bufio.NewReader(c)}
}

func (c *connection) serve(ctx context.Context) {
	defer c.conn.Close()
	clientHost, _, _ := net.SplitHostPort(c.conn.RemoteAddr().String())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.adapter.config.Timeouts.Read > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.adapter.config.Timeouts.Read))
		}

		call, argReader, err := rpc.ReadCall(c.reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("nfs connection read error", "addr", c.conn.RemoteAddr(), "error", err)
			}
			return
		}

		if c.adapter.config.Timeouts.Write > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.adapter.config.Timeouts.Write))
		}

		if err := c.dispatch(ctx, call, argReader, clientHost); err != nil {
			logger.Debug("nfs dispatch error", "addr", c.conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func (c *connection) dispatch(ctx context.Context, call *rpc.CallHeader, argReader *xdr.Reader, clientHost string) error {
	switch call.Program {
	case v3.Program:
		if call.Version != v3.SupportedVersion {
			return rpc.WriteErrorReply(c.conn, call.Xid, rpc.AcceptProgMismatch)
		}
		var body bytes.Buffer
		xw := xdr.NewWriter(&body)
		if err := c.adapter.v3Handler.Dispatch(ctx, call.Procedure, argReader, xw); err != nil {
			return rpc.WriteErrorReply(c.conn, call.Xid, rpc.AcceptProcUnavail)
		}
		return rpc.WriteAcceptedReply(c.conn, call.Xid, body.Bytes())

	case mountProgram:
		if call.Version != mountVersion {
			return rpc.WriteErrorReply(c.conn, call.Xid, rpc.AcceptProgMismatch)
		}
		return c.dispatchMount(call, argReader, clientHost)

	default:
		return rpc.WriteErrorReply(c.conn, call.Xid, rpc.AcceptProgUnavail)
	}
}

func (c *connection) dispatchMount(call *rpc.CallHeader, argReader *xdr.Reader, clientHost string) error {
	h := c.adapter.mountHandler

	switch call.Procedure {
	case mountProcNull:
		return rpc.WriteAcceptedReply(c.conn, call.Xid, nil)

	case mountProcMnt:
		path, err := argReader.String()
		if err != nil {
			return rpc.WriteErrorReply(c.conn, call.Xid, rpc.AcceptGarbageArgs)
		}
		status, handle, flavors := h.Mnt(clientHost, path)
		body, err := mount.EncodeMntReply(status, handle, flavors)
		if err != nil {
			return err
		}
		return rpc.WriteAcceptedReply(c.conn, call.Xid, body)

	case mountProcUmnt:
		path, err := argReader.String()
		if err != nil {
			return rpc.WriteErrorReply(c.conn, call.Xid, rpc.AcceptGarbageArgs)
		}
		h.Umnt(clientHost, path)
		return rpc.WriteAcceptedReply(c.conn, call.Xid, nil)

	case mountProcUmntAll:
		h.UmntAll(clientHost)
		return rpc.WriteAcceptedReply(c.conn, call.Xid, nil)

	case mountProcDump:
		var buf bytes.Buffer
		xw := xdr.NewWriter(&buf)
		for _, e := range h.Dump() {
			_ = xw.Bool(true)
			_ = xw.String(e.ClientHost)
			_ = xw.String(e.Path)
		}
		_ = xw.Bool(false)
		return rpc.WriteAcceptedReply(c.conn, call.Xid, buf.Bytes())

	case mountProcExport:
		var buf bytes.Buffer
		xw := xdr.NewWriter(&buf)
		for _, e := range h.Export() {
			_ = xw.Bool(true)
			_ = xw.String(e.Path)
			_ = xw.Bool(false) // no group list (everyone allowed)
		}
		_ = xw.Bool(false)
		return rpc.WriteAcceptedReply(c.conn, call.Xid, buf.Bytes())

	default:
		return rpc.WriteErrorReply(c.conn, call.Xid, rpc.AcceptProcUnavail)
	}
}
