package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore/memory"
)

func TestTreeRootSingleLeaf(t *testing.T) {
	tree := NewTree()
	leaf := HashEvent(Disassembled, "/a", "ev-a", 0, []byte("a"))
	tree.Insert(leaf)
	require.Equal(t, leaf, tree.Root())
}

func TestTreeInclusionProofRoundTrip(t *testing.T) {
	tree := NewTree()
	var leaves []Hash
	for i := 0; i < 37; i++ {
		h := HashEvent(Disassembled, "/f", fmt.Sprintf("ev-%d", i), int64(i), []byte(fmt.Sprintf("event-%d", i)))
		leaves = append(leaves, h)
		tree.Insert(h)
	}
	root := tree.Root()

	for i, leaf := range leaves {
		proof, err := tree.ProofFor(i)
		require.NoError(t, err)
		require.True(t, VerifyInclusion(leaf, proof, root), "leaf %d must verify against the root", i)
	}
}

func TestAppendAssignsSequentialLeaves(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log, err := Open(ctx, store, Config{})
	require.NoError(t, err)

	ev0, err := log.Append(ctx, Disassembled, "/a", []byte("first"))
	require.NoError(t, err)
	ev1, err := log.Append(ctx, Reassembled, "/a", []byte("second"))
	require.NoError(t, err)

	require.Equal(t, 0, ev0.LeafIndex)
	require.Equal(t, 1, ev1.LeafIndex)
	require.Equal(t, ev0.WindowID, ev1.WindowID)
	require.Equal(t, Disassembled, ev0.Type)
	require.Equal(t, Reassembled, ev1.Type)
}

// 1000 events split across two windows by a count-based rollover; a
// proof for an event in the first window must verify against that
// window's sealed root and must not verify against the second
// window's root.
func TestBoundaryScenarioTwoWindows(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log, err := Open(ctx, store, Config{MaxEventsPerWindow: 500})
	require.NoError(t, err)

	firstWindowID := log.CurrentWindow().ID
	var midEventID string

	for i := 0; i < 1000; i++ {
		ev, err := log.Append(ctx, Disassembled, fmt.Sprintf("/file-%d", i), []byte(fmt.Sprintf("event-%d", i)))
		require.NoError(t, err)
		if i == 250 {
			midEventID = ev.ID
		}
	}
	secondWindowID := log.CurrentWindow().ID
	require.NoError(t, log.Seal(ctx))

	require.NotEqual(t, firstWindowID, secondWindowID)

	w1, err := log.Window(ctx, firstWindowID)
	require.NoError(t, err)
	require.True(t, w1.Sealed)
	require.Equal(t, 500, w1.EventCount)

	proof, err := log.ProofFor(ctx, midEventID)
	require.NoError(t, err)
	require.Equal(t, firstWindowID, proof.WindowID)
	require.True(t, proof.Verify(), "proof must verify against its own window's root")

	w2, err := log.Window(ctx, secondWindowID)
	require.NoError(t, err)
	require.NotEqual(t, w1.RootHash, w2.RootHash)

	forged := *proof
	forged.MerkleRoot = w2.RootHash
	require.False(t, forged.Verify(), "proof must not verify against a different window's root")
}

func TestDurationRollover(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	log, err := Open(ctx, store, Config{WindowDuration: time.Minute})
	require.NoError(t, err)
	log.now = func() time.Time { return fakeNow }
	// Re-open the first window with the fake clock so Start lines up.
	require.NoError(t, log.openNewWindow(ctx, nil))

	_, err = log.Append(ctx, Disassembled, "/a", []byte("a"))
	require.NoError(t, err)

	fakeNow = fakeNow.Add(2 * time.Minute)
	_, err = log.Append(ctx, Disassembled, "/a", []byte("b"))
	require.NoError(t, err)

	require.Equal(t, 1, log.CurrentWindow().EventCount, "the duration rollover must have sealed the first window")
}

func TestHistoricalRootsRange(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log, err := Open(ctx, store, Config{MaxEventsPerWindow: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, Disassembled, fmt.Sprintf("/e-%d", i), []byte(fmt.Sprintf("e-%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, log.Seal(ctx))

	windows, err := log.HistoricalRoots(ctx, time.Unix(0, 0), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(windows), 3)
}

func TestDisassembledThenReassembledRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log, err := Open(ctx, store, Config{})
	require.NoError(t, err)

	disassembled, err := log.Append(ctx, Disassembled, "/doc.txt", []byte("flushed 4096 bytes"))
	require.NoError(t, err)
	reassembled, err := log.Append(ctx, Reassembled, "/doc.txt", []byte("read 256 bytes at offset 512"))
	require.NoError(t, err)

	require.Equal(t, Disassembled, disassembled.Type)
	require.Equal(t, Reassembled, reassembled.Type)
	require.Equal(t, "/doc.txt", disassembled.FilePath)
	require.Equal(t, "/doc.txt", reassembled.FilePath)

	dp, err := log.ProofFor(ctx, disassembled.ID)
	require.NoError(t, err)
	require.True(t, dp.Verify())

	rp, err := log.ProofFor(ctx, reassembled.ID)
	require.NoError(t, err)
	require.True(t, rp.Verify())
}
