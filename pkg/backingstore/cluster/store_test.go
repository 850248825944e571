//go:build integration

package cluster_test

import (
	"os"
	"strings"
	"testing"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/cluster"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/storetest"
)

// TestConformance requires a live Redis Cluster reachable at
// SHAMIRNFS_TEST_REDIS_NODES (comma-separated host:port list); it skips
// itself when that isn't set, the same way the teacher's Postgres/Badger
// conformance runs are gated behind the "integration" build tag rather
// than assumed to have a database handy.
func TestConformance(t *testing.T) {
	nodes := os.Getenv("SHAMIRNFS_TEST_REDIS_NODES")
	if nodes == "" {
		t.Skip("SHAMIRNFS_TEST_REDIS_NODES not set")
	}

	storetest.RunConformanceSuite(t, func(t *testing.T) backingstore.Store {
		store, err := cluster.Open(cluster.Config{Nodes: strings.Split(nodes, ","), PoolMaxSize: 4})
		if err != nil {
			t.Fatalf("cluster.Open() failed: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}
