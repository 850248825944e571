// Package mount implements the MOUNT protocol (RFC 1813 Appendix I):
// MNT, UMNT, UMNTALL, DUMP, EXPORT. SBFS serves exactly one namespace
// root per server process, so there is no multi-share registry to
// consult and no per-share ACL/Kerberos/netgroup policy layer to
// enforce -- a single configured export is all Handler ever holds.
//
// Unlike internal/nfs/v3 (hand-rolled XDR), this package marshals
// MNT/UMNT arguments and results with github.com/rasky/go-xdr rather
// than the internal/nfs/xdr package, since MOUNT's argument shapes are
// small enough that reflection-based XDR costs nothing noticeable and
// saves hand-writing encode/decode pairs for a protocol this narrow.
package mount

import (
	"bytes"
	"sync"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/shamirnfs/shamirnfs/internal/logger"
)

// Status is the MOUNT protocol's mountstat3 (RFC 1813 Appendix I).
type Status uint32

const (
	StatusOK        Status = 0
	StatusPerm      Status = 1
	StatusNoEnt     Status = 2
	StatusIO        Status = 5
	StatusAccess    Status = 13
	StatusNotDir    Status = 20
	StatusInval     Status = 22
	StatusNameLong  Status = 63
	StatusNotSupp   Status = 10004
	StatusServFault Status = 10006
)

const authFlavorUnix int32 = 1

// Export describes the single namespace root this MOUNT server
// advertises. A real multi-tenant deployment would look this up in a
// share registry; SBFS has exactly one, so Handler just holds it
// directly.
type Export struct {
	Path       string
	RootHandle []byte
}

// mountEntry records one outstanding client mount for DUMP/UMNTALL.
type mountEntry struct {
	ClientHost string
	Path       string
	MountedAt  time.Time
}

// Handler implements the MOUNT procedures against a single Export.
type Handler struct {
	export Export

	mu      sync.Mutex
	entries map[string]mountEntry // keyed by clientHost+path
}

func New(export Export) *Handler {
	return &Handler{export: export, entries: make(map[string]mountEntry)}
}

// Mnt handles MNT: the client names a directory path, the server
// returns the file handle for SBFS's namespace root if the path
// matches the configured export.
func (h *Handler) Mnt(clientHost, dirPath string) (Status, []byte, []int32) {
	if dirPath != h.export.Path {
		logger.Warn("mount denied", "path", dirPath, "client", clientHost, "reason", "no matching export")
		return StatusNoEnt, nil, nil
	}

	h.mu.Lock()
	h.entries[clientHost+"|"+dirPath] = mountEntry{ClientHost: clientHost, Path: dirPath, MountedAt: time.Now()}
	h.mu.Unlock()

	logger.Info("mount accepted", "path", dirPath, "client", clientHost)
	return StatusOK, h.export.RootHandle, []int32{authFlavorUnix}
}

// Umnt handles UMNT: drop the client's recorded mount, if any.
func (h *Handler) Umnt(clientHost, dirPath string) {
	h.mu.Lock()
	delete(h.entries, clientHost+"|"+dirPath)
	h.mu.Unlock()
}

// UmntAll handles UMNTALL: drop every mount recorded for clientHost.
func (h *Handler) UmntAll(clientHost string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, e := range h.entries {
		if e.ClientHost == clientHost {
			delete(h.entries, key)
		}
	}
}

// DumpEntry is one row of the MOUNT DUMP reply: which client has which
// path mounted.
type DumpEntry struct {
	ClientHost string
	Path       string
}

// Dump handles DUMP: list every currently recorded mount.
func (h *Handler) Dump() []DumpEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DumpEntry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, DumpEntry{ClientHost: e.ClientHost, Path: e.Path})
	}
	return out
}

// Export handles EXPORT: list the paths this server makes available
// and which clients may mount them. SBFS exports a single path with no
// access-list restriction, so the group list is always empty (meaning
// "everyone").
func (h *Handler) Export() []ExportListEntry {
	return []ExportListEntry{{Path: h.export.Path, Groups: nil}}
}

type ExportListEntry struct {
	Path   string
	Groups []string
}

// DecodeDirPath decodes a single XDR string argument, the body of
// MNT/UMNT requests.
func DecodeDirPath(body []byte) (string, error) {
	var path string
	_, err := xdr.Unmarshal(bytes.NewReader(body), &path)
	if err != nil {
		return "", err
	}
	return path, nil
}

// EncodeMntReply encodes the MNT result body: status, and on success
// the opaque file handle and auth-flavor list.
func EncodeMntReply(status Status, handle []byte, flavors []int32) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, uint32(status)); err != nil {
		return nil, err
	}
	if status != StatusOK {
		return buf.Bytes(), nil
	}
	if _, err := xdr.Marshal(&buf, handle); err != nil {
		return nil, err
	}
	if _, err := xdr.Marshal(&buf, flavors); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
