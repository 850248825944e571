package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runKVTests(t *testing.T, factory StoreFactory) {
	t.Run("GetMissingReturnsNotOK", func(t *testing.T) {
		store := factory(t)
		_, ok, err := store.Get(ctx(), "absent")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("PutThenGetRoundTrips", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Put(ctx(), "k1", []byte("v1")))
		got, ok, err := store.Get(ctx(), "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("v1"), got)
	})

	t.Run("PutOverwritesExistingValue", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Put(ctx(), "k1", []byte("v1")))
		require.NoError(t, store.Put(ctx(), "k1", []byte("v2")))
		got, ok, err := store.Get(ctx(), "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("v2"), got)
	})

	t.Run("DeleteRemovesKey", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Put(ctx(), "k1", []byte("v1")))
		require.NoError(t, store.Delete(ctx(), "k1"))
		_, ok, err := store.Get(ctx(), "k1")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("DeleteMissingKeyIsNotAnError", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Delete(ctx(), "never-existed"))
	})
}
