package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
)

func runAtomicTests(t *testing.T, factory StoreFactory) {
	t.Run("ExecAtomicAppliesEveryWrite", func(t *testing.T) {
		store := factory(t)
		batch := []backingstore.Write{
			{Op: backingstore.OpPut, Key: "k1", Value: []byte("v1")},
			{Op: backingstore.OpHSet, Key: "h1", Field: "f1", Value: []byte("hv1")},
			{Op: backingstore.OpZAdd, Key: "z1", Member: "m1", Score: 1},
		}
		require.NoError(t, store.ExecAtomic(ctx(), batch))

		got, ok, err := store.Get(ctx(), "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("v1"), got)

		hgot, ok, err := store.HGet(ctx(), "h1", "f1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("hv1"), hgot)

		members, err := store.ZRangeByScore(ctx(), "z1", 0, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"m1"}, members)
	})

	t.Run("ExecAtomicDeleteAndHDelWithinOneBatch", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Put(ctx(), "k1", []byte("v1")))
		require.NoError(t, store.HSet(ctx(), "h1", "f1", []byte("hv1")))

		batch := []backingstore.Write{
			{Op: backingstore.OpDelete, Key: "k1"},
			{Op: backingstore.OpHDel, Key: "h1", Field: "f1"},
		}
		require.NoError(t, store.ExecAtomic(ctx(), batch))

		_, ok, err := store.Get(ctx(), "k1")
		require.NoError(t, err)
		require.False(t, ok)

		_, ok, err = store.HGet(ctx(), "h1", "f1")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ExecAtomicOnEmptyBatchIsANoOp", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.ExecAtomic(ctx(), nil))
	})
}
