package channelbuffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeChunkStore struct {
	mu        sync.Mutex
	chunkSize int
	chunks    map[int64][]byte
	writes    int
}

func newFakeChunkStore(chunkSize int) *fakeChunkStore {
	return &fakeChunkStore{chunkSize: chunkSize, chunks: make(map[int64][]byte)}
}

func (f *fakeChunkStore) ChunkSize() int { return f.chunkSize }

func (f *fakeChunkStore) ReadChunk(_ context.Context, _ uint64, idx int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chunks[idx]; ok {
		return append([]byte{}, c...), nil
	}
	return make([]byte, f.chunkSize), nil
}

func (f *fakeChunkStore) WriteChunk(_ context.Context, _ uint64, idx int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[idx] = append([]byte{}, data...)
	f.writes++
	return nil
}

func TestWriteAndReadBackUnflushed(t *testing.T) {
	store := newFakeChunkStore(16)
	buf := New(store, Config{})
	ctx := context.Background()

	require.NoError(t, buf.Write(ctx, 1, 0, []byte("hello")))
	got, err := buf.Read(ctx, 1, 0, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestCoalescingReducesFlushedWrites(t *testing.T) {
	store := newFakeChunkStore(16)
	buf := New(store, Config{})
	ctx := context.Background()

	require.NoError(t, buf.Write(ctx, 1, 0, []byte("AAAA")))
	require.NoError(t, buf.Write(ctx, 1, 4, []byte("BBBB")))
	require.NoError(t, buf.Flush(ctx, 1))
	require.Equal(t, 1, store.writes, "two adjacent writes in one chunk must flush as a single chunk write")

	got, err := buf.Read(ctx, 1, 0, 8)
	require.NoError(t, err)
	require.Equal(t, []byte("AAAABBBB"), got)
}

func TestFlushThreshold(t *testing.T) {
	store := newFakeChunkStore(16)
	buf := New(store, Config{FlushThreshold: 8})
	ctx := context.Background()

	require.NoError(t, buf.Write(ctx, 1, 0, make([]byte, 4)))
	require.Equal(t, 0, store.writes)
	require.NoError(t, buf.Write(ctx, 1, 4, make([]byte, 4)))
	require.Equal(t, 1, store.writes, "crossing the threshold must trigger a synchronous flush")
}

func TestPartialWriteReadModifyWrite(t *testing.T) {
	store := newFakeChunkStore(16)
	store.chunks[0] = []byte("0123456789abcdef")
	buf := New(store, Config{})
	ctx := context.Background()

	require.NoError(t, buf.Write(ctx, 1, 4, []byte("XXXX")))
	require.NoError(t, buf.Flush(ctx, 1))

	got, err := buf.Read(ctx, 1, 0, 16)
	require.NoError(t, err)
	require.Equal(t, []byte("0123XXXX89abcdef"), got)
}

func TestIdleFlush(t *testing.T) {
	store := newFakeChunkStore(16)
	buf := New(store, Config{IdleTimeout: 20 * time.Millisecond, IdleCheckInterval: 5 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, buf.Write(ctx, 1, 0, []byte("idle")))
	require.Eventually(t, func() bool {
		return store.writes == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, buf.Close(ctx))
}

func TestCloseFlushesAllFiles(t *testing.T) {
	store := newFakeChunkStore(16)
	buf := New(store, Config{})
	ctx := context.Background()

	require.NoError(t, buf.Write(ctx, 1, 0, []byte("one")))
	require.NoError(t, buf.Write(ctx, 2, 0, []byte("two")))
	require.NoError(t, buf.Close(ctx))
	require.Equal(t, 2, store.writes)

	err := buf.Write(ctx, 1, 0, []byte("more"))
	require.Error(t, err)
}

func TestConcurrentWritesToSameFileSerialize(t *testing.T) {
	store := newFakeChunkStore(16)
	buf := New(store, Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = buf.Write(ctx, 1, int64(i), []byte{byte('a' + i)})
		}(i)
	}
	wg.Wait()
	require.NoError(t, buf.Flush(ctx, 1))

	got, err := buf.Read(ctx, 1, 0, 16)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		require.Equal(t, byte('a'+i), got[i])
	}
}
