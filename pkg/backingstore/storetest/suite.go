// Package storetest is a shared conformance suite for backingstore.Store
// implementations: one set of behavioral assertions run against every
// backend (BadgerDB, Redis Cluster, the in-memory fake) through a single
// StoreFactory, so a new backend only has to pass the same tests the
// existing ones already do.
package storetest

import (
	"context"
	"testing"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
)

// StoreFactory creates a fresh, empty Store instance for one test.
// Factories that need a live external service (e.g. Redis Cluster)
// should call t.Skip if it is unavailable rather than fail the suite.
type StoreFactory func(t *testing.T) backingstore.Store

// RunConformanceSuite runs every conformance category against factory.
// Each category gets its own fresh Store so failures in one don't leave
// state that could mask a bug in another.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("KV", func(t *testing.T) {
		runKVTests(t, factory)
	})
	t.Run("Hash", func(t *testing.T) {
		runHashTests(t, factory)
	})
	t.Run("SortedSet", func(t *testing.T) {
		runSortedSetTests(t, factory)
	})
	t.Run("Atomic", func(t *testing.T) {
		runAtomicTests(t, factory)
	})
}

func ctx() context.Context { return context.Background() }
