// Package audit implements the Time-Windowed Merkle Audit (TWMA) log:
// an append-only log of events organized into rolling time windows,
// each sealed into a balanced Merkle tree. Sealing itself involves no
// zk-SNARK; pkg/snark can wrap an event's inclusion proof on demand
// (see cmd/audit-reader).
//
// Hashing uses BLAKE3 with the domain-separated leaf/node convention
// RFC 6962 popularized for certificate transparency logs.
package audit

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

var zeroHash Hash

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(h[:], raw)
	return nil
}

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

// writeField writes a length-prefixed field so concatenated fields
// can't be confused with each other (e.g. path="ab"+name="c" colliding
// with path="a"+name="bc").
func writeField(h *blake3.Hasher, b []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(b)))
	h.Write(length[:])
	h.Write(b)
}

// HashEvent computes the leaf hash committed to the tree: a
// domain-separated, length-prefixed digest of the event's type, path,
// id, timestamp, and body, so no two distinct events can collide.
func HashEvent(eventType EventType, filePath, eventID string, timestampNanos int64, data []byte) Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestampNanos))

	h := blake3.New(32, nil)
	h.Write([]byte{leafPrefix})
	writeField(h, []byte(eventType))
	writeField(h, []byte(filePath))
	writeField(h, []byte(eventID))
	writeField(h, ts[:])
	writeField(h, data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashNode(left, right Hash) Hash {
	h := blake3.New(32, nil)
	h.Write([]byte{nodePrefix})
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// hashChain links a sealed window's root to its predecessor's, so the
// sequence of historical roots forms its own hash chain independent
// of the per-window trees.
func hashChain(prevRoot, root Hash) Hash {
	h := blake3.New(32, nil)
	h.Write([]byte{nodePrefix})
	h.Write(prevRoot[:])
	h.Write(root[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
