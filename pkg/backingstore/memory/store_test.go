package memory_test

import (
	"testing"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/memory"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) backingstore.Store {
		return memory.New()
	})
}
