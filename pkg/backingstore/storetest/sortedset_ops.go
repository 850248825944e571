package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runSortedSetTests(t *testing.T, factory StoreFactory) {
	t.Run("ZRangeByScoreOrdersByScore", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.ZAdd(ctx(), "z1", "c", 30))
		require.NoError(t, store.ZAdd(ctx(), "z1", "a", 10))
		require.NoError(t, store.ZAdd(ctx(), "z1", "b", 20))

		members, err := store.ZRangeByScore(ctx(), "z1", 0, 100)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, members)
	})

	t.Run("ZRangeByScoreExcludesOutOfRangeMembers", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.ZAdd(ctx(), "z1", "a", 10))
		require.NoError(t, store.ZAdd(ctx(), "z1", "b", 20))
		require.NoError(t, store.ZAdd(ctx(), "z1", "c", 30))

		members, err := store.ZRangeByScore(ctx(), "z1", 15, 25)
		require.NoError(t, err)
		require.Equal(t, []string{"b"}, members)
	})

	t.Run("ZAddOverwritesScoreForExistingMember", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.ZAdd(ctx(), "z1", "a", 10))
		require.NoError(t, store.ZAdd(ctx(), "z1", "a", 99))

		members, err := store.ZRangeByScore(ctx(), "z1", 0, 50)
		require.NoError(t, err)
		require.Empty(t, members)

		members, err = store.ZRangeByScore(ctx(), "z1", 50, 100)
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, members)
	})

	t.Run("ZRemRemovesMember", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.ZAdd(ctx(), "z1", "a", 10))
		require.NoError(t, store.ZAdd(ctx(), "z1", "b", 20))
		require.NoError(t, store.ZRem(ctx(), "z1", "a"))

		members, err := store.ZRangeByScore(ctx(), "z1", 0, 100)
		require.NoError(t, err)
		require.Equal(t, []string{"b"}, members)
	})

	t.Run("ZRangeByScoreOnMissingKeyIsEmpty", func(t *testing.T) {
		store := factory(t)
		members, err := store.ZRangeByScore(ctx(), "never-existed", 0, 100)
		require.NoError(t, err)
		require.Empty(t, members)
	})
}
