package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runHashTests(t *testing.T, factory StoreFactory) {
	t.Run("HGetMissingFieldReturnsNotOK", func(t *testing.T) {
		store := factory(t)
		_, ok, err := store.HGet(ctx(), "h1", "absent")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("HSetThenHGetRoundTrips", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.HSet(ctx(), "h1", "f1", []byte("v1")))
		got, ok, err := store.HGet(ctx(), "h1", "f1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("v1"), got)
	})

	t.Run("HGetAllReturnsEveryField", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.HSet(ctx(), "h1", "f1", []byte("v1")))
		require.NoError(t, store.HSet(ctx(), "h1", "f2", []byte("v2")))
		all, err := store.HGetAll(ctx(), "h1")
		require.NoError(t, err)
		require.Equal(t, map[string][]byte{"f1": []byte("v1"), "f2": []byte("v2")}, all)
	})

	t.Run("HDelRemovesOnlyThatField", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.HSet(ctx(), "h1", "f1", []byte("v1")))
		require.NoError(t, store.HSet(ctx(), "h1", "f2", []byte("v2")))
		require.NoError(t, store.HDel(ctx(), "h1", "f1"))

		_, ok, err := store.HGet(ctx(), "h1", "f1")
		require.NoError(t, err)
		require.False(t, ok)

		got, ok, err := store.HGet(ctx(), "h1", "f2")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("v2"), got)
	})

	t.Run("HGetAllOnMissingHashIsEmpty", func(t *testing.T) {
		store := factory(t)
		all, err := store.HGetAll(ctx(), "never-existed")
		require.NoError(t, err)
		require.Empty(t, all)
	})
}
