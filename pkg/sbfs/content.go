package sbfs

import (
	"context"
	"fmt"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/ferr"
	"github.com/shamirnfs/shamirnfs/pkg/ssc"
)

// BlockSize is the granularity at which file content is independently
// Shamir-split, distinct from ssc.Params.ChunkSize (the much smaller
// polynomial-evaluation granularity used inside one Split call).
// Chosen so large-file writes still amortize into a bounded number of
// re-Split operations rather than re-encoding an entire file on every
// write.
const BlockSize = 4 << 20 // 4 MiB

// Content is the file-content layer: content-addressed by inode ID and
// block index, Shamir-split via codec, persisted in the Backing
// Store's hash-field family "ns:{root}/shares/{id}".
//
// It implements channelbuffer.ChunkStore, so a Channel Buffer can sit
// in front of it to coalesce small writes before they trigger a
// re-Split.
type Content struct {
	store backingstore.Store
	codec *ssc.Codec
	root  string
}

func NewContent(store backingstore.Store, codec *ssc.Codec, root string) *Content {
	return &Content{store: store, codec: codec, root: root}
}

func (c *Content) ChunkSize() int { return BlockSize }

func (c *Content) sharesKey(fileID uint64) string {
	return fmt.Sprintf("ns:%s/shares/%d", c.root, fileID)
}

func shareField(blockIdx int64, shareIdx int) string {
	return fmt.Sprintf("%d:%d", blockIdx, shareIdx)
}

// ReadChunk implements channelbuffer.ChunkStore: it reconstructs block
// blockIdx of fileID from Threshold shares, or returns a zero-filled
// block if nothing has ever been written there.
func (c *Content) ReadChunk(ctx context.Context, fileID uint64, blockIdx int64) ([]byte, error) {
	return c.ReadBlock(ctx, fileID, blockIdx)
}

// WriteChunk implements channelbuffer.ChunkStore: it re-Splits the
// full block and persists every resulting share.
func (c *Content) WriteChunk(ctx context.Context, fileID uint64, blockIdx int64, data []byte) error {
	return c.WriteBlock(ctx, fileID, blockIdx, data)
}

// ReadBlock reconstructs the plaintext of one content block.
func (c *Content) ReadBlock(ctx context.Context, fileID uint64, blockIdx int64) ([]byte, error) {
	k := c.codec.Params.Threshold
	shares := make([]ssc.Share, 0, k)
	key := c.sharesKey(fileID)

	for i := 1; i <= c.codec.Params.Shares && len(shares) < k; i++ {
		raw, ok, err := c.store.HGet(ctx, key, shareField(blockIdx, i))
		if err != nil {
			return nil, ferr.Wrap(ferr.IOError, "read share", err)
		}
		if !ok {
			continue
		}
		shares = append(shares, ssc.Share{Index: i, Bytes: raw})
	}

	if len(shares) == 0 {
		return make([]byte, BlockSize), nil
	}
	if len(shares) < k {
		return nil, ferr.New(ferr.InsufficientShares, "not enough shares to reconstruct block")
	}

	plaintext, err := c.codec.Combine(shares)
	if err != nil {
		return nil, err
	}
	if len(plaintext) < BlockSize {
		grown := make([]byte, BlockSize)
		copy(grown, plaintext)
		return grown, nil
	}
	return plaintext, nil
}

// WriteBlock Shamir-splits data (expected to be exactly BlockSize,
// zero-padded by the caller for a sparse tail) and atomically persists
// every resulting share.
func (c *Content) WriteBlock(ctx context.Context, fileID uint64, blockIdx int64, data []byte) error {
	shares, err := c.codec.Split(data)
	if err != nil {
		return err
	}

	key := c.sharesKey(fileID)
	batch := make([]backingstore.Write, 0, len(shares))
	for _, s := range shares {
		batch = append(batch, backingstore.Write{
			Op:    backingstore.OpHSet,
			Key:   key,
			Field: shareField(blockIdx, s.Index),
			Value: s.Bytes,
		})
	}
	if err := c.store.ExecAtomic(ctx, batch); err != nil {
		return ferr.Wrap(ferr.IOError, "persist shares", err)
	}
	return nil
}

// DeleteFile drops every share of every block belonging to fileID.
func (c *Content) DeleteFile(ctx context.Context, fileID uint64) error {
	key := c.sharesKey(fileID)
	fields, err := c.store.HGetAll(ctx, key)
	if err != nil {
		return ferr.Wrap(ferr.IOError, "list shares for deletion", err)
	}
	batch := make([]backingstore.Write, 0, len(fields))
	for field := range fields {
		batch = append(batch, backingstore.Write{Op: backingstore.OpHDel, Key: key, Field: field})
	}
	if len(batch) == 0 {
		return nil
	}
	return c.store.ExecAtomic(ctx, batch)
}
