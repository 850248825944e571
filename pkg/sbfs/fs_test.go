package sbfs

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shamirnfs/shamirnfs/pkg/audit"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/memory"
	"github.com/shamirnfs/shamirnfs/pkg/ssc"
)

var testPrime521 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 521), big.NewInt(1))

func newTestFilesystem(t *testing.T) *Filesystem {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	codec, err := ssc.New(ssc.Params{
		Prime:     testPrime521,
		ChunkSize: 64,
		Threshold: 2,
		Shares:    3,
		Pool:      ssc.NewWorkerPool(4),
	})
	require.NoError(t, err)

	fs, err := Open(ctx, Config{Store: store, Codec: codec, Root: "test"})
	require.NoError(t, err)
	return fs
}

func TestCreateLookupGetattr(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	file, err := fs.Create(ctx, RootInodeID, "hello.txt", Attr{Mode: 0o644})
	require.NoError(t, err)

	found, err := fs.Lookup(ctx, RootInodeID, "hello.txt")
	require.NoError(t, err)
	require.Equal(t, file.ID, found.ID)
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	file, err := fs.Create(ctx, RootInodeID, "data.bin", Attr{Mode: 0o644})
	require.NoError(t, err)

	n, err := fs.Write(ctx, file.ID, 0, []byte("hello, world!"))
	require.NoError(t, err)
	require.Equal(t, uint32(13), n)
	require.NoError(t, fs.Commit(ctx, file.ID))

	data, eof, err := fs.Read(ctx, file.ID, 0, 13)
	require.NoError(t, err)
	require.True(t, eof)
	require.Equal(t, []byte("hello, world!"), data)
}

// A partial write into an already-committed file must read back as a
// read-modify-write, not a truncation of the untouched bytes.
func TestPartialWriteReadModifyWrite(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	file, err := fs.Create(ctx, RootInodeID, "partial.bin", Attr{Mode: 0o644})
	require.NoError(t, err)

	_, err = fs.Write(ctx, file.ID, 0, []byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, fs.Commit(ctx, file.ID))

	_, err = fs.Write(ctx, file.ID, 3, []byte("XXX"))
	require.NoError(t, err)
	require.NoError(t, fs.Commit(ctx, file.ID))

	data, _, err := fs.Read(ctx, file.ID, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []byte("012XXX6789"), data)
}

// Renaming onto an existing file replaces it rather than erroring.
func TestRenameOverExistingFile(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	src, err := fs.Create(ctx, RootInodeID, "src.txt", Attr{Mode: 0o644})
	require.NoError(t, err)
	_, err = fs.Write(ctx, src.ID, 0, []byte("source"))
	require.NoError(t, err)
	require.NoError(t, fs.Commit(ctx, src.ID))

	dst, err := fs.Create(ctx, RootInodeID, "dst.txt", Attr{Mode: 0o644})
	require.NoError(t, err)
	_, err = fs.Write(ctx, dst.ID, 0, []byte("destination"))
	require.NoError(t, err)
	require.NoError(t, fs.Commit(ctx, dst.ID))

	require.NoError(t, fs.Rename(ctx, RootInodeID, "src.txt", RootInodeID, "dst.txt"))

	_, err = fs.Lookup(ctx, RootInodeID, "src.txt")
	require.Error(t, err)

	found, err := fs.Lookup(ctx, RootInodeID, "dst.txt")
	require.NoError(t, err)
	require.Equal(t, src.ID, found.ID)

	data, _, err := fs.Read(ctx, found.ID, 0, 6)
	require.NoError(t, err)
	require.Equal(t, []byte("source"), data)
}

func TestRenameOntoNonEmptyDirectoryFails(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	_, err := fs.Mkdir(ctx, RootInodeID, "src", Attr{Mode: 0o755})
	require.NoError(t, err)
	dst, err := fs.Mkdir(ctx, RootInodeID, "dst", Attr{Mode: 0o755})
	require.NoError(t, err)
	_, err = fs.Create(ctx, dst.ID, "occupant.txt", Attr{Mode: 0o644})
	require.NoError(t, err)

	err = fs.Rename(ctx, RootInodeID, "src", RootInodeID, "dst")
	require.Error(t, err)
}

// Concurrent writes to the same file id must serialize through the
// Channel Buffer rather than racing or corrupting each other.
func TestConcurrentWritesSameFileSerialize(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	file, err := fs.Create(ctx, RootInodeID, "concurrent.bin", Attr{Mode: 0o644})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := fs.Write(ctx, file.ID, int64(i), []byte{byte('a' + i%26)})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, fs.Commit(ctx, file.ID))

	data, _, err := fs.Read(ctx, file.ID, 0, 32)
	require.NoError(t, err)
	require.Len(t, data, 32)
	for i, b := range data {
		require.Equal(t, byte('a'+i%26), b)
	}
}

func TestRemoveDeletesContent(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	file, err := fs.Create(ctx, RootInodeID, "temp.bin", Attr{Mode: 0o644})
	require.NoError(t, err)
	_, err = fs.Write(ctx, file.ID, 0, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, fs.Commit(ctx, file.ID))

	require.NoError(t, fs.Remove(ctx, RootInodeID, "temp.bin"))

	_, err = fs.Lookup(ctx, RootInodeID, "temp.bin")
	require.Error(t, err)
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	dir, err := fs.Mkdir(ctx, RootInodeID, "d", Attr{Mode: 0o755})
	require.NoError(t, err)
	_, err = fs.Create(ctx, dir.ID, "f.txt", Attr{Mode: 0o644})
	require.NoError(t, err)

	err = fs.Rmdir(ctx, RootInodeID, "d")
	require.Error(t, err)
}

func TestReaddirPagination(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := fs.Create(ctx, RootInodeID, string(rune('a'+i))+".txt", Attr{Mode: 0o644})
		require.NoError(t, err)
	}

	page, err := fs.Readdir(ctx, RootInodeID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	require.False(t, page.EOF)

	rest, err := fs.Readdir(ctx, RootInodeID, page.Entries[len(page.Entries)-1].Cookie, 100)
	require.NoError(t, err)
	require.True(t, rest.EOF)
	require.Len(t, rest.Entries, 3)
}

// One flushed write and one read against the same file must produce
// exactly one Disassembled event and one Reassembled event, each
// carrying the file's path, and both provable against their window.
func TestWriteReadEmitsDisassembledAndReassembled(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log, err := audit.Open(ctx, store, audit.Config{})
	require.NoError(t, err)

	codec, err := ssc.New(ssc.Params{
		Prime:     testPrime521,
		ChunkSize: 64,
		Threshold: 2,
		Shares:    3,
		Pool:      ssc.NewWorkerPool(4),
	})
	require.NoError(t, err)

	fs, err := Open(ctx, Config{Store: store, Codec: codec, Root: "test", Audit: log})
	require.NoError(t, err)

	file, err := fs.Create(ctx, RootInodeID, "audited.bin", Attr{Mode: 0o644})
	require.NoError(t, err)

	_, err = fs.Write(ctx, file.ID, 0, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, fs.Commit(ctx, file.ID))

	_, _, err = fs.Read(ctx, file.ID, 0, 7)
	require.NoError(t, err)

	require.NoError(t, log.Seal(ctx))
	window := log.CurrentWindow()
	require.Equal(t, 0, window.EventCount)

	windows, err := log.HistoricalRoots(ctx, window.Start.Add(-time.Hour), window.Start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.Equal(t, 2, windows[0].EventCount, "exactly one Disassembled and one Reassembled event")
}

func TestSymlinkReadlink(t *testing.T) {
	fs := newTestFilesystem(t)
	ctx := context.Background()

	link, err := fs.Symlink(ctx, RootInodeID, "l", "/target/path", Attr{Mode: 0o777})
	require.NoError(t, err)

	target, err := fs.Readlink(ctx, link.ID)
	require.NoError(t, err)
	require.Equal(t, "/target/path", target)
}
