//go:build integration

package badger_test

import (
	"path/filepath"
	"testing"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/badger"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) backingstore.Store {
		store, err := badger.Open(filepath.Join(t.TempDir(), "backingstore.db"))
		if err != nil {
			t.Fatalf("badger.Open() failed: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}
