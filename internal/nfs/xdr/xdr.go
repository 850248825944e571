// Package xdr implements the subset of RFC 4506 External Data
// Representation primitives the NFSv3/MOUNT handlers need to encode
// and decode procedure arguments and results.
//
// Hand-rolled on top of encoding/binary rather than a third-party
// codec: XDR's encoding rules (4-byte alignment, length-prefixed
// opaque/strings) are simple enough that a dependency buys nothing a
// few dozen lines of stdlib calls don't already provide, and every
// handler reads directly against this package rather than a generic
// codec.
package xdr

import (
	"encoding/binary"
	"fmt"
	"io"
)

const maxOpaqueLength = 4 * 1024 * 1024

// Reader decodes XDR primitives from a byte stream.
type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) Uint32() (uint32, error) {
	var v uint32
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("xdr: read uint32: %w", err)
	}
	return v, nil
}

func (r *Reader) Uint64() (uint64, error) {
	var v uint64
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("xdr: read uint64: %w", err)
	}
	return v, nil
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint32()
	return v != 0, err
}

func (r *Reader) Opaque() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if n > maxOpaqueLength {
		return nil, fmt.Errorf("xdr: opaque length %d exceeds maximum %d", n, maxOpaqueLength)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, fmt.Errorf("xdr: read opaque: %w", err)
	}
	return data, r.skipPadding(n)
}

func (r *Reader) String() (string, error) {
	data, err := r.Opaque()
	return string(data), err
}

func (r *Reader) skipPadding(n uint32) error {
	pad := (4 - n%4) % 4
	if pad == 0 {
		return nil
	}
	var buf [3]byte
	_, err := io.ReadFull(r.r, buf[:pad])
	return err
}

// Writer encodes XDR primitives to a byte stream.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) Uint32(v uint32) error {
	return binary.Write(w.w, binary.BigEndian, v)
}

func (w *Writer) Uint64(v uint64) error {
	return binary.Write(w.w, binary.BigEndian, v)
}

func (w *Writer) Bool(v bool) error {
	if v {
		return w.Uint32(1)
	}
	return w.Uint32(0)
}

func (w *Writer) Opaque(data []byte) error {
	if err := w.Uint32(uint32(len(data))); err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("xdr: write opaque: %w", err)
	}
	return w.writePadding(len(data))
}

func (w *Writer) String(s string) error {
	return w.Opaque([]byte(s))
}

func (w *Writer) writePadding(n int) error {
	pad := (4 - n%4) % 4
	if pad == 0 {
		return nil
	}
	var buf [3]byte
	_, err := w.w.Write(buf[:pad])
	return err
}
